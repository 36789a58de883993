package repository

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_back_end/internal/models"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// =============================================
// CATÉGORIES
// =============================================

// ListCategories renvoie l'arbre des catégories actives. Avec search, renvoie
// les catégories dont le nom ou celui du parent correspond, avec leurs enfants.
func (r *CatalogRepository) ListCategories(ctx context.Context, search string) ([]models.Category, error) {
	all, err := r.allCategories(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Category, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	children := childIndex(all)

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Category, 0)
	for _, c := range all {
		if search == "" {
			if c.ParentID != nil {
				continue
			}
		} else if !matches(c, search) {
			if c.ParentID == nil {
				continue
			}
			if p, ok := byID[*c.ParentID]; !ok || !matches(p, search) {
				continue
			}
		}
		out = append(out, withChildren(c, children))
	}
	return out, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	all, err := r.allCategories(ctx)
	if err != nil {
		return nil, err
	}
	children := childIndex(all)
	for _, c := range all {
		if c.ID == id {
			tree := withChildren(c, children)
			return &tree, nil
		}
	}
	return nil, ErrNotFound
}

func (r *CatalogRepository) allCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, icon, description, is_active, parent_id, created_at
		FROM categories
		WHERE is_active
		ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
		var c models.Category
		err := row.Scan(&c.ID, &c.Name, &c.Icon, &c.Description, &c.IsActive, &c.ParentID, &c.CreatedAt)
		return c, err
	})
}

func matches(c models.Category, search string) bool {
	return strings.Contains(strings.ToLower(c.Name), search)
}

func childIndex(all []models.Category) map[uuid.UUID][]models.Category {
	idx := make(map[uuid.UUID][]models.Category)
	for _, c := range all {
		if c.ParentID != nil {
			idx[*c.ParentID] = append(idx[*c.ParentID], c)
		}
	}
	return idx
}

func withChildren(c models.Category, idx map[uuid.UUID][]models.Category) models.Category {
	c.Children = make([]models.Category, 0, len(idx[c.ID]))
	for _, child := range idx[c.ID] {
		c.Children = append(c.Children, withChildren(child, idx))
	}
	return c
}

// =============================================
// PRODUITS
// =============================================

const productSelect = `
	SELECT p.id, p.seller_id, p.category_id, p.title, p.description, p.price,
		p.quantity, p.image_url, p.created_at, p.updated_at,
		c.id, c.name, c.icon, c.description, c.is_active, c.parent_id, c.created_at,
		u.first_name, u.last_name, u.email, u.phone_number, u.gender
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	JOIN users u ON u.id = p.seller_id`

const productWhere = `
	WHERE ($1::uuid IS NULL OR p.category_id = $1 OR c.parent_id = $1)
	  AND ($2 = '' OR p.title ILIKE '%' || $2 || '%' OR p.description ILIKE '%' || $2 || '%')
	  AND ($3::uuid[] IS NULL OR p.id = ANY($3::uuid[]))`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p   models.Product
		s   models.Seller
		cat struct {
			ID          *uuid.UUID
			Name        *string
			Icon        *string
			Description *string
			IsActive    *bool
			ParentID    *uuid.UUID
			CreatedAt   *time.Time
		}
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.CategoryID, &p.Title, &p.Description, &p.Price,
		&p.Quantity, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
		&cat.ID, &cat.Name, &cat.Icon, &cat.Description, &cat.IsActive, &cat.ParentID, &cat.CreatedAt,
		&s.FirstName, &s.LastName, &s.Email, &s.PhoneNumber, &s.Gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan product")
	}

	s.ID = p.SellerID
	p.Seller = &s
	if cat.ID != nil {
		p.Category = &models.Category{
			ID:          *cat.ID,
			Name:        *cat.Name,
			Icon:        *cat.Icon,
			Description: *cat.Description,
			IsActive:    *cat.IsActive,
			ParentID:    cat.ParentID,
			CreatedAt:   *cat.CreatedAt,
		}
	}
	p.Colors = []models.Color{}
	p.Sizes = []models.Size{}
	return &p, nil
}

// ListProducts renvoie une page de produits, les plus récents d'abord.
func (r *CatalogRepository) ListProducts(ctx context.Context, f models.ProductFilter, page models.Page) ([]models.Product, int, error) {
	var ids []string
	if f.IDs != nil {
		ids = idStrings(f.IDs)
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM products p
		LEFT JOIN categories c ON c.id = p.category_id`+productWhere,
		f.CategoryID, f.Search, ids,
	).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}

	rows, err := r.pool.Query(ctx, productSelect+productWhere+`
		ORDER BY p.created_at DESC
		LIMIT $4 OFFSET $5`,
		f.CategoryID, f.Search, ids, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachOptions(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ProductsByIDs charge les produits dans l'ordre des identifiants fournis.
func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	rows, err := r.pool.Query(ctx, productSelect+` WHERE p.id = ANY($1::uuid[])`, idStrings(ids))
	if err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	found, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachOptions(ctx, found); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	products := []models.Product{*p}
	if err := r.attachOptions(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func collectProducts(rows pgx.Rows) ([]models.Product, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Product, error) {
		p, err := scanProduct(row)
		if err != nil {
			return models.Product{}, err
		}
		return *p, nil
	})
}

// attachOptions charge couleurs et tailles des produits en deux requêtes.
func (r *CatalogRepository) attachOptions(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(products))
	index := make(map[uuid.UUID]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, `
		SELECT pc.product_id, c.id, c.name, c.hex_value
		FROM product_colors pc
		JOIN colors c ON c.id = pc.color_id
		WHERE pc.product_id = ANY($1::uuid[])
		ORDER BY c.name`, idStrings(ids))
	if err != nil {
		return errors.Wrap(err, "load colors")
	}
	for rows.Next() {
		var pid uuid.UUID
		var c models.Color
		if err := rows.Scan(&pid, &c.ID, &c.Name, &c.HexValue); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan color")
		}
		products[index[pid]].Colors = append(products[index[pid]].Colors, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate colors")
	}

	rows, err = r.pool.Query(ctx, `
		SELECT ps.product_id, s.id, s.name, s.description
		FROM product_sizes ps
		JOIN sizes s ON s.id = ps.size_id
		WHERE ps.product_id = ANY($1::uuid[])
		ORDER BY s.name`, idStrings(ids))
	if err != nil {
		return errors.Wrap(err, "load sizes")
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		var s models.Size
		if err := rows.Scan(&pid, &s.ID, &s.Name, &s.Description); err != nil {
			return errors.Wrap(err, "scan size")
		}
		products[index[pid]].Sizes = append(products[index[pid]].Sizes, s)
	}
	return errors.Wrap(rows.Err(), "iterate sizes")
}

// CreateProduct insère le produit et ses options pour le vendeur donné.
func (r *CatalogRepository) CreateProduct(ctx context.Context, sellerID uuid.UUID, in models.ProductInput) (*models.Product, error) {
	var id uuid.UUID
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (seller_id, category_id, title, description, price, quantity)
			VALUES ($1, $2, $3, COALESCE($4, ''), $5, COALESCE($6, 0))
			RETURNING id`,
			sellerID, in.CategoryID, in.Title, in.Description, in.Price, in.Quantity,
		).Scan(&id)
		if pgCode(err) == foreignKeyViolation {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "insert product")
		}
		return setOptions(ctx, tx, id, in)
	})
	if err != nil {
		return nil, err
	}
	return r.GetProduct(ctx, id)
}

// UpdateProduct applique une mise à jour partielle. Les listes de couleurs et
// tailles non nulles remplacent les existantes.
func (r *CatalogRepository) UpdateProduct(ctx context.Context, id uuid.UUID, in models.ProductInput) (*models.Product, error) {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE products SET
				title       = COALESCE($2, title),
				description = COALESCE($3, description),
				price       = COALESCE($4, price),
				quantity    = COALESCE($5, quantity),
				category_id = COALESCE($6, category_id),
				updated_at  = now()
			WHERE id = $1`,
			id, in.Title, in.Description, in.Price, in.Quantity, in.CategoryID)
		if pgCode(err) == foreignKeyViolation {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "update product")
		}
		if tag.RowsAffected() == 0 {
			return ErrProductNotFound
		}
		return setOptions(ctx, tx, id, in)
	})
	if err != nil {
		return nil, err
	}
	return r.GetProduct(ctx, id)
}

func setOptions(ctx context.Context, tx pgx.Tx, id uuid.UUID, in models.ProductInput) error {
	if in.ColorIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM product_colors WHERE product_id = $1`, id); err != nil {
			return errors.Wrap(err, "clear colors")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_colors (product_id, color_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`, id, idStrings(in.ColorIDs)); err != nil {
			if pgCode(err) == foreignKeyViolation {
				return ErrNotFound
			}
			return errors.Wrap(err, "set colors")
		}
	}
	if in.SizeIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, id); err != nil {
			return errors.Wrap(err, "clear sizes")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_sizes (product_id, size_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`, id, idStrings(in.SizeIDs)); err != nil {
			if pgCode(err) == foreignKeyViolation {
				return ErrNotFound
			}
			return errors.Wrap(err, "set sizes")
		}
	}
	return nil
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if pgCode(err) == foreignKeyViolation {
		return ErrConflict
	}
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *CatalogRepository) SetProductImage(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET image_url = $2, updated_at = now() WHERE id = $1`, id, url)
	if err != nil {
		return errors.Wrap(err, "set image")
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
