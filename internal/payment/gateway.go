// Package payment isole le prestataire de paiement derrière une interface.
package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Statuts renvoyés par le prestataire.
const (
	IntentSucceeded = "succeeded"
	SessionPaid     = "paid"
)

// Gateway est le contrat du prestataire de paiement.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, clientSecret string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*Session, error)
}

type IntentRequest struct {
	OrderID string
	UserID  string
	Email   string
	Amount  decimal.Decimal
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type SessionRequest struct {
	OrderID     string
	UserID      string
	Email       string
	Description string
	Amount      decimal.Decimal
}

type Session struct {
	ID            string
	URL           string
	PaymentStatus string
}

// IsIntentID indique si une référence de transaction est un PaymentIntent
// (les sessions Checkout commencent par cs_).
func IsIntentID(transactionID string) bool {
	return strings.HasPrefix(transactionID, "pi_")
}

// GatewayError porte le message du prestataire, renvoyé tel quel au client.
type GatewayError struct {
	Message string
	Code    string
	Err     error
}

func (e *GatewayError) Error() string { return e.Message }
func (e *GatewayError) Unwrap() error { return e.Err }

// ToMinorUnits convertit un montant en centimes.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
