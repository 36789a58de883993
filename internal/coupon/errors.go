package coupon

import "github.com/go-faster/errors"

var (
	ErrNotFound      = errors.New("coupon not found")
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrOrderNotFound et ErrForbidden concernent la commande ciblée.
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("order belongs to another user")
)

// RuleError est un refus métier renvoyé tel quel dans {"detail": ...}.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

var (
	ErrInactive       = &RuleError{Message: "Coupon is not active."}
	ErrNotYetValid    = &RuleError{Message: "The coupon code is not yet valid."}
	ErrExpired        = &RuleError{Message: "The coupon code has expired."}
	ErrUsageLimit     = &RuleError{Message: "The coupon usage limit has been reached."}
	ErrAlreadyUsed    = &RuleError{Message: "You have already used this coupon."}
	ErrOrderNotOpen   = &RuleError{Message: "Coupons can only be applied to pending orders."}
	ErrAlreadyApplied = &RuleError{Message: "A coupon has already been applied to this order."}
)

// FieldError signale une donnée invalide sur un champ précis.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }
