package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"go.uber.org/zap"

	"marketplace_back_end/internal/config"
)

// StripeGateway implémente Gateway avec des clients Stripe dédiés
// (pas de clé globale stripe.Key).
type StripeGateway struct {
	intents    *paymentintent.Client
	sessions   *session.Client
	currency   string
	successURL string
	cancelURL  string
	logger     *zap.Logger
}

var _ Gateway = (*StripeGateway)(nil)

func NewStripeGateway(cfg config.Stripe, logger *zap.Logger) *StripeGateway {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &StripeGateway{
		intents:    &paymentintent.Client{B: backend, Key: cfg.SecretKey},
		sessions:   &session.Client{B: backend, Key: cfg.SecretKey},
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logger:     logger,
	}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:             stripe.Params{Context: ctx},
		Amount:             stripe.Int64(ToMinorUnits(req.Amount)),
		Currency:           stripe.String(g.currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", req.UserID)

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, g.wrap(err, "create payment intent")
	}
	g.logger.Info("💳 PaymentIntent créé", zap.String("intent_id", pi.ID), zap.String("order_id", req.OrderID))
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (g *StripeGateway) ConfirmPaymentIntent(ctx context.Context, intentID, clientSecret string) (*Intent, error) {
	pi, err := g.intents.Get(intentID, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, g.wrap(err, "retrieve payment intent")
	}
	if pi.ClientSecret != clientSecret {
		return nil, &GatewayError{Message: "Invalid client secret.", Code: "invalid_client_secret"}
	}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
	}

	pi, err = g.intents.Confirm(intentID, &stripe.PaymentIntentConfirmParams{
		Params:    stripe.Params{Context: ctx},
		ReturnURL: stripe.String(g.successURL),
	})
	if err != nil {
		return nil, g.wrap(err, "confirm payment intent")
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	_, err := g.intents.Cancel(intentID, &stripe.PaymentIntentCancelParams{
		Params:             stripe.Params{Context: ctx},
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	})
	if err != nil {
		return g.wrap(err, "cancel payment intent")
	}
	g.logger.Info("💳 PaymentIntent annulé", zap.String("intent_id", intentID))
	return nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", req.UserID)

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, g.wrap(err, "create checkout session")
	}
	g.logger.Info("💳 Session Checkout créée", zap.String("session_id", s.ID), zap.String("order_id", req.OrderID))
	return &Session{ID: s.ID, URL: s.URL, PaymentStatus: string(s.PaymentStatus)}, nil
}

func (g *StripeGateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	s, err := g.sessions.Get(sessionID, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, g.wrap(err, "retrieve checkout session")
	}
	return &Session{ID: s.ID, URL: s.URL, PaymentStatus: string(s.PaymentStatus)}, nil
}

// wrap convertit une erreur Stripe en GatewayError avec le message d'origine.
func (g *StripeGateway) wrap(err error, op string) error {
	g.logger.Error("❌ Erreur Stripe", zap.String("op", op), zap.Error(err))
	var se *stripe.Error
	if errors.As(err, &se) {
		return &GatewayError{Message: se.Msg, Code: string(se.Code), Err: err}
	}
	return &GatewayError{Message: err.Error(), Err: errors.Wrap(err, op)}
}
