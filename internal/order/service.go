package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/payment"
	"marketplace_back_end/internal/utils"
)

// CheckoutInput décrit une commande à créer depuis le panier.
type CheckoutInput struct {
	UserID        uuid.UUID
	PaymentMethod string
	Address       models.ShippingAddress
}

// Repository est le stockage des commandes. Les transitions sont gardées :
// elles renvoient ErrConcurrentUpdate si le statut attendu a changé.
type Repository interface {
	// Checkout crée la commande depuis le panier dans une seule transaction.
	Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page models.Page, withItems bool) ([]models.Order, int, error)
	FindByTransaction(ctx context.Context, transactionID string) (*models.Order, error)
	SetTransaction(ctx context.Context, id uuid.UUID, transactionID string) error
	Transition(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
	// MarkPaid passe la commande à paid, décrémente le stock et vide le panier.
	// Renvoie les produits dont le stock était insuffisant.
	MarkPaid(ctx context.Context, id uuid.UUID) (oversold []string, err error)
}

// Notifier est prévenu de chaque changement de statut.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, o models.Order)
}

type Service struct {
	orders   Repository
	gateway  payment.Gateway
	notifier Notifier
	journal  utils.Journal
	logger   *zap.Logger
}

func NewService(orders Repository, gateway payment.Gateway, notifier Notifier, journal utils.Journal, logger *zap.Logger) *Service {
	return &Service{
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		journal:  journal,
		logger:   logger,
	}
}

// =============================================
// LECTURE
// =============================================

func (s *Service) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Order, error) {
	return s.owned(ctx, actor, id)
}

func (s *Service) List(ctx context.Context, actor models.Actor, page models.Page, withItems bool) (models.PageResult[models.Order], error) {
	orders, total, err := s.orders.ListByUser(ctx, actor.UserID, page, withItems)
	if err != nil {
		return models.PageResult[models.Order]{}, err
	}
	return models.NewPageResult(orders, total, page), nil
}

func (s *Service) Status(ctx context.Context, actor models.Actor, id uuid.UUID) (models.OrderStatus, error) {
	o, err := s.owned(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

// =============================================
// CHECKOUT
// =============================================

// Checkout crée une commande pending à partir du panier de l'acheteur.
func (s *Service) Checkout(ctx context.Context, actor models.Actor, in CheckoutInput) (*models.Order, error) {
	in.UserID = actor.UserID
	o, err := s.orders.Checkout(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("🛒 Commande créée",
		zap.String("order_id", o.ID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.String("amount", o.Amount.StringFixed(2)),
	)
	s.journal.Record(ctx, models.AuditLog{
		UserID:     actor.UserID.String(),
		Action:     utils.ActionOrderCheckout,
		Resource:   utils.ResourceOrder,
		ResourceID: o.ID.String(),
		NewValue:   string(o.Status),
		Success:    true,
	})
	return o, nil
}

// =============================================
// PAIEMENT
// =============================================

// InitiatePayment crée un PaymentIntent et renvoie son client_secret.
func (s *Service) InitiatePayment(ctx context.Context, actor models.Actor, id uuid.UUID) (string, error) {
	o, err := s.owned(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if err := Check(OpInitiatePayment, o.Status); err != nil {
		return "", err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		OrderID: o.ID.String(),
		UserID:  o.UserID.String(),
		Email:   actor.Email,
		Amount:  o.Amount,
	})
	if err != nil {
		return "", err
	}
	if err := s.orders.SetTransaction(ctx, o.ID, intent.ID); err != nil {
		return "", s.raceError(ctx, o.ID, OpInitiatePayment, err)
	}
	return intent.ClientSecret, nil
}

// ConfirmPayment confirme le PaymentIntent et passe la commande à paid.
func (s *Service) ConfirmPayment(ctx context.Context, actor models.Actor, id uuid.UUID, clientSecret string) (string, error) {
	o, err := s.owned(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if err := Check(OpConfirmPayment, o.Status); err != nil {
		return "", err
	}
	if o.TransactionID == "" {
		return "", missingTransaction(o.Status)
	}

	intent, err := s.gateway.ConfirmPaymentIntent(ctx, o.TransactionID, clientSecret)
	if err != nil {
		return "", err
	}
	if intent.Status != payment.IntentSucceeded {
		return "", paymentFailed(o.Status)
	}
	if err := s.settle(ctx, actor.UserID.String(), o, OpConfirmPayment); err != nil {
		return "", err
	}
	return intent.Status, nil
}

// CreatePaymentLink crée une session Checkout hébergée et renvoie son URL.
func (s *Service) CreatePaymentLink(ctx context.Context, actor models.Actor, id uuid.UUID) (string, error) {
	o, err := s.owned(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if err := Check(OpCreateLink, o.Status); err != nil {
		return "", err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		OrderID:     o.ID.String(),
		UserID:      o.UserID.String(),
		Email:       actor.Email,
		Description: "Order #" + o.Reference(),
		Amount:      o.Amount,
	})
	if err != nil {
		return "", err
	}
	if err := s.orders.SetTransaction(ctx, o.ID, sess.ID); err != nil {
		return "", s.raceError(ctx, o.ID, OpCreateLink, err)
	}
	return sess.URL, nil
}

// MarkSuccess vérifie la session Checkout et passe la commande à paid.
func (s *Service) MarkSuccess(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	o, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := Check(OpMarkSuccess, o.Status); err != nil {
		return err
	}
	if o.TransactionID == "" {
		return missingTransaction(o.Status)
	}

	sess, err := s.gateway.RetrieveCheckoutSession(ctx, o.TransactionID)
	if err != nil {
		return err
	}
	if sess.PaymentStatus != payment.SessionPaid {
		return paymentFailed(o.Status)
	}
	return s.settle(ctx, actor.UserID.String(), o, OpMarkSuccess)
}

// SettleTransaction règle la commande liée à une transaction confirmée par
// webhook. Sans effet si la commande n'est plus pending.
func (s *Service) SettleTransaction(ctx context.Context, transactionID string) error {
	o, err := s.orders.FindByTransaction(ctx, transactionID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("⚠️ Webhook pour une transaction inconnue", zap.String("transaction_id", transactionID))
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status != models.OrderPending {
		return nil
	}

	err = s.settle(ctx, "stripe-webhook", o, OpMarkSuccess)
	var stateErr *StateError
	if errors.As(err, &stateErr) {
		// Réglée entre-temps par le client.
		return nil
	}
	return err
}

// =============================================
// TRANSITIONS
// =============================================

func (s *Service) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	o, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := Check(OpCancel, o.Status); err != nil {
		return err
	}
	if err := s.transition(ctx, actor.UserID.String(), o, OpCancel); err != nil {
		return err
	}

	// La commande reste annulée même si Stripe refuse : l'intent expirera.
	if payment.IsIntentID(o.TransactionID) {
		if err := s.gateway.CancelPaymentIntent(ctx, o.TransactionID); err != nil {
			s.logger.Warn("⚠️ Annulation du PaymentIntent impossible",
				zap.String("order_id", o.ID.String()),
				zap.String("intent_id", o.TransactionID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// UpdateStatus applique une transition admin (shipped ou delivered).
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	var op Operation
	switch target {
	case models.OrderShipped:
		op = OpShip
	case models.OrderDelivered:
		op = OpDeliver
	default:
		return nil, &StateError{Message: "Order status cannot be set to " + string(target) + "."}
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Check(op, o.Status); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, actor.UserID.String(), o, op); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) transition(ctx context.Context, by string, o *models.Order, op Operation) error {
	from, to := o.Status, Target(op)
	if err := s.orders.Transition(ctx, o.ID, from, to); err != nil {
		return s.raceError(ctx, o.ID, op, err)
	}
	o.Status = to
	s.afterTransition(ctx, by, o, from)
	return nil
}

func (s *Service) settle(ctx context.Context, by string, o *models.Order, op Operation) error {
	oversold, err := s.orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return s.raceError(ctx, o.ID, op, err)
	}
	for _, title := range oversold {
		s.logger.Warn("⚠️ Stock insuffisant au paiement, stock ramené à zéro",
			zap.String("order_id", o.ID.String()),
			zap.String("product", title),
		)
	}

	from := o.Status
	o.Status = models.OrderPaid
	o.IsPaid = true
	s.afterTransition(ctx, by, o, from)
	return nil
}

func (s *Service) afterTransition(ctx context.Context, by string, o *models.Order, from models.OrderStatus) {
	s.logger.Info("✅ Statut de commande mis à jour",
		zap.String("order_id", o.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
	)
	s.journal.Record(ctx, models.AuditLog{
		UserID:     by,
		Action:     utils.ActionOrderTransition,
		Resource:   utils.ResourceOrder,
		ResourceID: o.ID.String(),
		OldValue:   string(from),
		NewValue:   string(o.Status),
		Success:    true,
	})
	s.notifier.OrderStatusChanged(ctx, *o)
}

// raceError traduit une mise à jour gardée perdue en erreur d'état du
// statut gagnant.
func (s *Service) raceError(ctx context.Context, id uuid.UUID, op Operation, err error) error {
	if !errors.Is(err, ErrConcurrentUpdate) {
		return err
	}
	current, getErr := s.orders.Get(ctx, id)
	if getErr != nil {
		return getErr
	}
	if stateErr := Check(op, current.Status); stateErr != nil {
		return stateErr
	}
	return err
}

func (s *Service) owned(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return o, nil
}
