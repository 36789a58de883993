package user

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
)

type fakeOrders struct {
	orders   map[uuid.UUID]*models.Order
	checkout func(in order.CheckoutInput) (*models.Order, error)
	lastIn   order.CheckoutInput
	withItem bool
}

func (f *fakeOrders) Get(_ context.Context, actor models.Actor, id uuid.UUID) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, order.ErrForbidden
	}
	return o, nil
}

func (f *fakeOrders) List(_ context.Context, actor models.Actor, page models.Page, withItems bool) (models.PageResult[models.Order], error) {
	f.withItem = withItems
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == actor.UserID {
			cp := *o
			if !withItems {
				cp.Items = nil
			}
			out = append(out, cp)
		}
	}
	total := len(out)
	if page.Offset() >= total {
		out = nil
	}
	return models.NewPageResult(out, total, page), nil
}

func (f *fakeOrders) Checkout(_ context.Context, actor models.Actor, in order.CheckoutInput) (*models.Order, error) {
	in.UserID = actor.UserID
	f.lastIn = in
	return f.checkout(in)
}

func (f *fakeOrders) UpdateStatus(_ context.Context, _ models.Actor, id uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if err := order.Check(order.OpShip, o.Status); target == models.OrderShipped && err != nil {
		return nil, err
	}
	o.Status = target
	return o, nil
}

type fakeRenderer struct{ calls int }

func (r *fakeRenderer) Render(_ context.Context, o models.Order, buyer models.User) ([]byte, error) {
	r.calls++
	return []byte("%PDF-1.4 " + o.ID.String() + " " + buyer.Email), nil
}

func sampleOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		PaymentMethod: "card",
		Status:        models.OrderPending,
		Amount:        decimal.RequireFromString("25.00"),
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: uuid.New(), Title: "Mug", Quantity: 2, Price: decimal.RequireFromString("12.50")},
		},
		CreatedAt: time.Now(),
	}
}

func newOrderFixture(actor *models.Actor) (*OrderHandler, *fakeOrders, *fakeRenderer, *models.Order) {
	o := sampleOrder(actor.UserID)
	orders := &fakeOrders{orders: map[uuid.UUID]*models.Order{o.ID: o}}
	users := newFakeUsers()
	users.add(models.User{ID: actor.UserID, Email: actor.Email})
	renderer := &fakeRenderer{}
	return NewOrderHandler(orders, renderer, users, 2, 10, zap.NewNop()), orders, renderer, o
}

func TestOrderListAndHistory(t *testing.T) {
	actor := buyer()
	h, orders, _, _ := newOrderFixture(actor)

	w := serve(t, http.MethodGet, "/orders/", "/orders/", nil, actor, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.EqualValues(t, 1, out["count"])
	first := out["results"].([]any)[0].(map[string]any)
	assert.Contains(t, first, "order_items")
	assert.True(t, orders.withItem)

	w = serve(t, http.MethodGet, "/history/", "/history/", nil, actor, h.History)
	require.Equal(t, http.StatusOK, w.Code)
	first = decode(t, w)["results"].([]any)[0].(map[string]any)
	assert.NotContains(t, first, "order_items")

	w = serve(t, http.MethodGet, "/orders/", "/orders/?page=4", nil, actor, h.List)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderGet(t *testing.T) {
	actor := buyer()
	h, _, _, o := newOrderFixture(actor)

	w := serve(t, http.MethodGet, "/orders/:id/", "/orders/"+o.ID.String()+"/", nil, actor, h.Get)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "25", decode(t, w)["amount"])

	w = serve(t, http.MethodGet, "/orders/:id/", "/orders/"+o.ID.String()+"/", nil, buyer(), h.Get)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, http.MethodGet, "/orders/:id/", "/orders/1000/", nil, actor, h.Get)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, http.MethodGet, "/orders/:id/", "/orders/"+uuid.NewString()+"/", nil, actor, h.Get)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func checkoutBody() map[string]any {
	return map[string]any{
		"payment_method":        "card",
		"country_region":        "France",
		"city":                  "Lyon",
		"state_province_region": "Rhône",
		"postal_zip_code":       "69001",
		"telephone_number":      "+33612345678",
		"address_line_1":        "1 rue de la République",
	}
}

func TestCheckout(t *testing.T) {
	actor := buyer()
	h, orders, _, _ := newOrderFixture(actor)
	orders.checkout = func(in order.CheckoutInput) (*models.Order, error) {
		o := sampleOrder(in.UserID)
		o.ShippingAddress = in.Address
		return o, nil
	}

	w := serve(t, http.MethodPost, "/checkout/", "/checkout/", checkoutBody(), actor, h.Checkout)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, "Lyon", out["city"])
	assert.Len(t, out["order_items"], 1)
	assert.Equal(t, actor.UserID, orders.lastIn.UserID)
	assert.Equal(t, "card", orders.lastIn.PaymentMethod)
}

func TestCheckoutValidation(t *testing.T) {
	actor := buyer()
	h, _, _, _ := newOrderFixture(actor)

	body := checkoutBody()
	delete(body, "city")
	body["address_line_1"] = ""
	w := serve(t, http.MethodPost, "/checkout/", "/checkout/", body, actor, h.Checkout)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"city":["This field is required."],"address_line_1":["This field may not be blank."]}`, w.Body.String())
}

func TestCheckoutErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty cart", order.ErrEmptyCart, "Your cart is empty."},
		{"pending order", order.ErrPendingOrder, "You have an unconfirmed order."},
		{"stock", order.OutOfStock("Mug"), "Not enough stock for Mug."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := buyer()
			h, orders, _, _ := newOrderFixture(actor)
			orders.checkout = func(order.CheckoutInput) (*models.Order, error) { return nil, tt.err }

			w := serve(t, http.MethodPost, "/checkout/", "/checkout/", checkoutBody(), actor, h.Checkout)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["detail"])
		})
	}
}

func TestInvoice(t *testing.T) {
	actor := buyer()
	h, _, renderer, o := newOrderFixture(actor)

	w := serve(t, http.MethodGet, "/orders/:id/invoice/", "/orders/"+o.ID.String()+"/invoice/", nil, actor, h.Invoice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice-"+o.Reference()+".pdf")
	assert.Contains(t, w.Body.String(), actor.Email)
	assert.Equal(t, 1, renderer.calls)

	w = serve(t, http.MethodGet, "/orders/:id/invoice/", "/orders/"+o.ID.String()+"/invoice/", nil, buyer(), h.Invoice)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateStatus(t *testing.T) {
	actor := buyer()
	h, _, _, o := newOrderFixture(actor)
	admin := &models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}

	w := serve(t, http.MethodPatch, "/orders/:id/status/", "/orders/"+o.ID.String()+"/status/",
		map[string]any{"status": "shipped"}, admin, h.UpdateStatus)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Order cannot be shipped.", decode(t, w)["detail"])

	o.Status = models.OrderPaid
	w = serve(t, http.MethodPatch, "/orders/:id/status/", "/orders/"+o.ID.String()+"/status/",
		map[string]any{"status": "shipped"}, admin, h.UpdateStatus)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shipped", decode(t, w)["status"])

	w = serve(t, http.MethodPatch, "/orders/:id/status/", "/orders/"+o.ID.String()+"/status/",
		map[string]any{"status": "canceled"}, admin, h.UpdateStatus)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
