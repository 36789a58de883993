//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"marketplace_back_end/internal/coupon"
	"marketplace_back_end/internal/database"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
	"marketplace_back_end/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "marketplace",
				"POSTGRES_PASSWORD": "marketplace",
				"POSTGRES_DB":       "marketplace",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres host: %v\n", err)
		return 1
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres port: %v\n", err)
		return 1
	}

	url := fmt.Sprintf("postgres://marketplace:marketplace@%s:%s/marketplace?sslmode=disable", host, port.Port())
	pool, err = database.NewPool(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	return m.Run()
}

func seedUser(t *testing.T, role models.Role) *models.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	u := &models.User{
		Email:        "user-" + suffix + "@example.com",
		PhoneNumber:  "+1" + suffix,
		PasswordHash: "hash",
		FirstName:    "Test",
		Role:         role,
	}
	users := repository.NewUserRepository(pool)
	require.NoError(t, users.SaveUnverified(context.Background(), u))
	require.NoError(t, users.MarkVerified(context.Background(), u.ID))
	return u
}

func seedProduct(t *testing.T, seller uuid.UUID, title string, price string, stock int) *models.Product {
	t.Helper()
	p, err := repository.NewCatalogRepository(pool).CreateProduct(context.Background(), seller, models.ProductInput{
		Title:    &title,
		Price:    ptr(decimal.RequireFromString(price)),
		Quantity: &stock,
	})
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

var address = models.ShippingAddress{
	AddressLine1:        "1 Main St",
	City:                "Paris",
	StateProvinceRegion: "IDF",
	PostalZipCode:       "75001",
	CountryRegion:       "FR",
	TelephoneNumber:     "+33100000000",
}

func TestCheckoutAndSettle(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, models.RoleSeller)
	buyer := seedUser(t, models.RoleBuyer)
	shirt := seedProduct(t, seller.ID, "Shirt", "12.50", 3)

	carts := repository.NewCartRepository(pool)
	orders := repository.NewOrderRepository(pool)

	_, err := orders.Checkout(ctx, order.CheckoutInput{UserID: buyer.ID, PaymentMethod: "card", Address: address})
	require.ErrorIs(t, err, order.ErrEmptyCart)

	_, err = carts.AddItem(ctx, buyer.ID, shirt.ID, 5)
	var stockErr *repository.StockError
	require.ErrorAs(t, err, &stockErr)

	_, err = carts.AddItem(ctx, buyer.ID, shirt.ID, 2)
	require.NoError(t, err)

	o, err := orders.Checkout(ctx, order.CheckoutInput{UserID: buyer.ID, PaymentMethod: "card", Address: address})
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.True(t, o.Amount.Equal(decimal.RequireFromString("25.00")))
	require.Len(t, o.Items, 1)

	_, err = orders.Checkout(ctx, order.CheckoutInput{UserID: buyer.ID, PaymentMethod: "card", Address: address})
	require.ErrorIs(t, err, order.ErrPendingOrder)

	require.NoError(t, orders.SetTransaction(ctx, o.ID, "pi_123"))
	found, err := orders.FindByTransaction(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, o.ID, found.ID)

	oversold, err := orders.MarkPaid(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, oversold)

	_, err = orders.MarkPaid(ctx, o.ID)
	require.ErrorIs(t, err, order.ErrConcurrentUpdate)

	paid, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, paid.Status)
	assert.True(t, paid.IsPaid)

	p, err := repository.NewCatalogRepository(pool).GetProduct(ctx, shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Quantity)

	cart, err := carts.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestConcurrentCheckoutCreatesOneOrder(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, models.RoleSeller)
	buyer := seedUser(t, models.RoleBuyer)
	hat := seedProduct(t, seller.ID, "Hat", "5.00", 10)

	_, err := repository.NewCartRepository(pool).AddItem(ctx, buyer.ID, hat.ID, 1)
	require.NoError(t, err)

	orders := repository.NewOrderRepository(pool)
	const attempts = 5
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = orders.Checkout(ctx, order.CheckoutInput{UserID: buyer.ID, PaymentMethod: "card", Address: address})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, order.ErrPendingOrder)
	}
	assert.Equal(t, 1, succeeded)
}

func TestTransitionIsGuarded(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, models.RoleSeller)
	buyer := seedUser(t, models.RoleBuyer)
	mug := seedProduct(t, seller.ID, "Mug", "8.00", 4)

	_, err := repository.NewCartRepository(pool).AddItem(ctx, buyer.ID, mug.ID, 1)
	require.NoError(t, err)
	orders := repository.NewOrderRepository(pool)
	o, err := orders.Checkout(ctx, order.CheckoutInput{UserID: buyer.ID, PaymentMethod: "card", Address: address})
	require.NoError(t, err)

	require.NoError(t, orders.Transition(ctx, o.ID, models.OrderPending, models.OrderCanceled))
	require.ErrorIs(t, orders.Transition(ctx, o.ID, models.OrderPending, models.OrderCanceled), order.ErrConcurrentUpdate)
	require.ErrorIs(t, orders.SetTransaction(ctx, o.ID, "cs_1"), order.ErrConcurrentUpdate)
}

func TestCouponRedeem(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, models.RoleSeller)
	buyer := seedUser(t, models.RoleBuyer)
	other := seedUser(t, models.RoleBuyer)
	lamp := seedProduct(t, seller.ID, "Lamp", "40.00", 10)

	coupons := repository.NewCouponRepository(pool)
	c := &models.Coupon{
		Code:          "ONCE-" + uuid.NewString()[:6],
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(5),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		MaxUses:       1,
		Active:        true,
		CreatedBy:     &seller.ID,
	}
	require.NoError(t, coupons.Create(ctx, c))
	require.ErrorIs(t, coupons.Create(ctx, &models.Coupon{
		Code: c.Code, DiscountType: c.DiscountType, DiscountValue: c.DiscountValue,
		ValidFrom: c.ValidFrom, ValidUntil: c.ValidUntil, Active: true,
	}), coupon.ErrDuplicateCode)

	checkout := func(u *models.User) *models.Order {
		_, err := repository.NewCartRepository(pool).AddItem(ctx, u.ID, lamp.ID, 1)
		require.NoError(t, err)
		o, err := repository.NewOrderRepository(pool).Checkout(ctx, order.CheckoutInput{UserID: u.ID, PaymentMethod: "card", Address: address})
		require.NoError(t, err)
		return o
	}
	first, second := checkout(buyer), checkout(other)

	updated, err := coupons.Redeem(ctx, coupon.Redemption{CouponID: c.ID, UserID: buyer.ID, OrderID: first.ID, Discount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("35.00")))
	assert.True(t, updated.Discount.Equal(decimal.NewFromInt(5)))

	used, err := coupons.HasRedeemed(ctx, c.ID, buyer.ID)
	require.NoError(t, err)
	assert.True(t, used)

	_, err = coupons.Redeem(ctx, coupon.Redemption{CouponID: c.ID, UserID: buyer.ID, OrderID: first.ID, Discount: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, coupon.ErrAlreadyUsed)

	_, err = coupons.Redeem(ctx, coupon.Redemption{CouponID: c.ID, UserID: other.ID, OrderID: second.ID, Discount: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, coupon.ErrUsageLimit)
}

func TestCategoriesTree(t *testing.T) {
	ctx := context.Background()
	var parent, child uuid.UUID
	name := "Clothing-" + uuid.NewString()[:6]
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&parent))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO categories (name, parent_id) VALUES ('Shirts', $1) RETURNING id`, parent).Scan(&child))

	catalog := repository.NewCatalogRepository(pool)
	found, err := catalog.ListCategories(ctx, name)
	require.NoError(t, err)
	require.Len(t, found, 2)

	tree, err := catalog.GetCategory(ctx, parent)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, child, tree.Children[0].ID)
}

func TestImportCodesSkipsExisting(t *testing.T) {
	ctx := context.Background()
	coupons := repository.NewCouponRepository(pool)
	prefix := "IMP" + uuid.NewString()[:5]
	tmpl := models.Coupon{
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now(),
		ValidUntil:    time.Now().Add(24 * time.Hour),
		Active:        true,
	}

	n, err := coupons.ImportCodes(ctx, []string{prefix + "A", prefix + "B"}, tmpl)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = coupons.ImportCodes(ctx, []string{prefix + "B", prefix + "C"}, tmpl)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	c, err := coupons.FindByCode(ctx, prefix+"C")
	require.NoError(t, err)
	assert.True(t, c.DiscountValue.Equal(decimal.NewFromInt(10)))
}
