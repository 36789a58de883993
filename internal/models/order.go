package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
)

// ShippingAddress est l'adresse de livraison saisie au checkout.
type ShippingAddress struct {
	AddressLine1        string `json:"address_line_1" binding:"required"`
	AddressLine2        string `json:"address_line_2"`
	City                string `json:"city" binding:"required"`
	StateProvinceRegion string `json:"state_province_region" binding:"required"`
	PostalZipCode       string `json:"postal_zip_code" binding:"required"`
	CountryRegion       string `json:"country_region" binding:"required"`
	TelephoneNumber     string `json:"telephone_number" binding:"required"`
}

type Order struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user"`
	PaymentMethod string          `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	ShippingAddress
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Discount      decimal.Decimal `json:"discount"`
	IsPaid        bool            `json:"is_paid"`
	Items         []OrderItem     `json:"order_items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal renvoie prix unitaire x quantité.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Reference est l'identifiant court affiché au client.
func (o Order) Reference() string {
	return o.ID.String()[:8]
}
