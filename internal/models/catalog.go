package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	ParentID    *uuid.UUID `json:"parent"`
	Children    []Category `json:"children"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Color struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	HexValue string    `json:"hex_value"`
}

type Size struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// Seller est le résumé public du vendeur affiché avec un produit.
type Seller struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Gender      string    `json:"gender"`
}

type Product struct {
	ID          uuid.UUID       `json:"id"`
	SellerID    uuid.UUID       `json:"-"`
	Seller      *Seller         `json:"seller,omitempty"`
	CategoryID  *uuid.UUID      `json:"-"`
	Category    *Category       `json:"category,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"image"`
	Colors      []Color         `json:"colors"`
	Sizes       []Size          `json:"sizes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductInput sert à la création et à la mise à jour partielle d'un produit.
type ProductInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	ColorIDs    []uuid.UUID      `json:"color_ids"`
	SizeIDs     []uuid.UUID      `json:"size_ids"`
}

// ProductFilter restreint la liste des produits.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	IDs        []uuid.UUID
}
