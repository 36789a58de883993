package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"marketplace_back_end/internal/models"
)

var (
	ErrNotFound  = errors.New("order not found")
	ErrForbidden = errors.New("order belongs to another user")
	// ErrConcurrentUpdate : la mise à jour gardée n'a touché aucune ligne.
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
)

// StateError est un refus lié au statut courant ou au paiement.
// Message est renvoyé tel quel dans {"detail": ...}.
type StateError struct {
	Status  models.OrderStatus
	Message string
}

func (e *StateError) Error() string { return e.Message }

// CheckoutError est un refus de checkout renvoyé tel quel au client.
type CheckoutError struct {
	Message string
}

func (e *CheckoutError) Error() string { return e.Message }

var (
	ErrEmptyCart    = &CheckoutError{Message: "Your cart is empty."}
	ErrPendingOrder = &CheckoutError{Message: "You have an unconfirmed order."}
)

// OutOfStock construit l'erreur de stock insuffisant pour un produit.
func OutOfStock(title string) error {
	return &CheckoutError{Message: fmt.Sprintf("Not enough stock for %s.", title)}
}

func missingTransaction(status models.OrderStatus) error {
	return &StateError{Status: status, Message: "Transaction ID is missing."}
}

func paymentFailed(status models.OrderStatus) error {
	return &StateError{Status: status, Message: "Payment failed."}
}
