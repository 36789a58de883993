// Package order porte la machine à états des commandes et le checkout.
package order

import "marketplace_back_end/internal/models"

// Transitions liste, pour chaque statut, les statuts cibles autorisés.
var Transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderPaid, models.OrderCanceled},
	models.OrderPaid:      {models.OrderShipped},
	models.OrderShipped:   {models.OrderDelivered},
	models.OrderDelivered: {}, // terminal
	models.OrderCanceled:  {}, // terminal
}

// CanTransition indique si from -> to est autorisé.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal indique qu'aucune transition ne part de ce statut.
func IsTerminal(s models.OrderStatus) bool {
	next, ok := Transitions[s]
	return ok && len(next) == 0
}

// Operation est une action client ou admin sur une commande.
type Operation string

const (
	OpInitiatePayment Operation = "initiate_payment"
	OpConfirmPayment  Operation = "confirm_payment"
	OpCancel          Operation = "cancel"
	OpCreateLink      Operation = "create_payment_link"
	OpMarkSuccess     Operation = "mark_success"
	OpShip            Operation = "ship"
	OpDeliver         Operation = "deliver"
)

type guard struct {
	from     models.OrderStatus
	to       models.OrderStatus // vide : le statut ne change pas
	rejected map[models.OrderStatus]string
	fallback string
}

var guards = map[Operation]guard{
	OpInitiatePayment: {
		from: models.OrderPending,
		rejected: map[models.OrderStatus]string{
			models.OrderPaid:      "Order is already paid.",
			models.OrderShipped:   "Order has been shipped.",
			models.OrderDelivered: "Order has been delivered.",
			models.OrderCanceled:  "Order already canceled.",
		},
		fallback: "Order cannot be updated.",
	},
	OpConfirmPayment: {
		from:     models.OrderPending,
		to:       models.OrderPaid,
		fallback: "Order payment status cannot be updated.",
	},
	OpCancel: {
		from: models.OrderPending,
		to:   models.OrderCanceled,
		rejected: map[models.OrderStatus]string{
			models.OrderCanceled: "Order already canceled.",
		},
		fallback: "Order cannot be canceled.",
	},
	OpCreateLink: {
		from: models.OrderPending,
		rejected: map[models.OrderStatus]string{
			models.OrderCanceled: "Order already canceled.",
		},
		fallback: "Order cannot be updated.",
	},
	OpMarkSuccess: {
		from: models.OrderPending,
		to:   models.OrderPaid,
		rejected: map[models.OrderStatus]string{
			models.OrderCanceled: "Order already canceled.",
		},
		fallback: "Order cannot be updated.",
	},
	OpShip: {
		from:     models.OrderPaid,
		to:       models.OrderShipped,
		fallback: "Order cannot be shipped.",
	},
	OpDeliver: {
		from:     models.OrderShipped,
		to:       models.OrderDelivered,
		fallback: "Order cannot be delivered.",
	},
}

// Check renvoie une *StateError si l'opération est interdite depuis status.
func Check(op Operation, status models.OrderStatus) error {
	g, ok := guards[op]
	if !ok {
		return &StateError{Status: status, Message: "Order cannot be updated."}
	}
	if status == g.from && (g.to == "" || CanTransition(g.from, g.to)) {
		return nil
	}
	if msg, ok := g.rejected[status]; ok {
		return &StateError{Status: status, Message: msg}
	}
	return &StateError{Status: status, Message: g.fallback}
}

// Target renvoie le statut atteint par l'opération (vide si inchangé).
func Target(op Operation) models.OrderStatus {
	return guards[op].to
}
