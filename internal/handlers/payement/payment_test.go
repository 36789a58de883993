package payement

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
	"marketplace_back_end/internal/payment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, method, route, target string, body any, actor *models.Actor, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if actor != nil {
			middleware.SetActor(c, *actor)
		}
		c.Next()
	}, h)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func buyer() *models.Actor {
	return &models.Actor{UserID: uuid.New(), Email: "buyer@example.com", Role: models.RoleBuyer}
}

// fakePayments simule order.Service pour une seule commande.
type fakePayments struct {
	owner  uuid.UUID
	id     uuid.UUID
	status models.OrderStatus
	// gatewayErr est renvoyée par les appels au prestataire.
	gatewayErr error
}

func (f *fakePayments) load(actor models.Actor, id uuid.UUID) error {
	if id != f.id {
		return order.ErrNotFound
	}
	if actor.UserID != f.owner {
		return order.ErrForbidden
	}
	return nil
}

func (f *fakePayments) Status(_ context.Context, actor models.Actor, id uuid.UUID) (models.OrderStatus, error) {
	if err := f.load(actor, id); err != nil {
		return "", err
	}
	return f.status, nil
}

func (f *fakePayments) InitiatePayment(_ context.Context, actor models.Actor, id uuid.UUID) (string, error) {
	if err := f.load(actor, id); err != nil {
		return "", err
	}
	if f.gatewayErr != nil {
		return "", f.gatewayErr
	}
	return "pi_123_secret_abc", nil
}

func (f *fakePayments) ConfirmPayment(_ context.Context, actor models.Actor, id uuid.UUID, secret string) (string, error) {
	if err := f.load(actor, id); err != nil {
		return "", err
	}
	if secret != "pi_123_secret_abc" {
		return "", &payment.GatewayError{Message: "Invalid client secret.", Code: "invalid_client_secret"}
	}
	f.status = models.OrderPaid
	return payment.IntentSucceeded, nil
}

func (f *fakePayments) CreatePaymentLink(_ context.Context, actor models.Actor, id uuid.UUID) (string, error) {
	if err := f.load(actor, id); err != nil {
		return "", err
	}
	if err := order.Check(order.OpCreateLink, f.status); err != nil {
		return "", err
	}
	return "https://checkout.stripe.com/c/pay/cs_test_1", nil
}

func (f *fakePayments) MarkSuccess(_ context.Context, actor models.Actor, id uuid.UUID) error {
	if err := f.load(actor, id); err != nil {
		return err
	}
	f.status = models.OrderPaid
	return nil
}

func (f *fakePayments) Cancel(_ context.Context, actor models.Actor, id uuid.UUID) error {
	if err := f.load(actor, id); err != nil {
		return err
	}
	if err := order.Check(order.OpCancel, f.status); err != nil {
		return err
	}
	f.status = models.OrderCanceled
	return nil
}

func newPayments(actor *models.Actor) *fakePayments {
	return &fakePayments{owner: actor.UserID, id: uuid.New(), status: models.OrderPending}
}

var card = map[string]any{"card_number": "4242424242424242", "expiry_month": "12", "expiry_year": "2030", "cvc": "123"}

func TestInitiateAndConfirm(t *testing.T) {
	actor := buyer()
	svc := newPayments(actor)
	h := NewPaymentHandler(svc, zap.NewNop())
	path := "/api/payment/" + svc.id.String()

	w := serve(t, http.MethodPatch, "/api/payment/:id/initiate/", path+"/initiate/", map[string]any{"card_number": "4242"}, actor, h.Initiate)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Card details are incomplete."}`, w.Body.String())

	w = serve(t, http.MethodPatch, "/api/payment/:id/initiate/", path+"/initiate/", card, actor, h.Initiate)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pi_123_secret_abc", decode(t, w)["client_secret"])

	w = serve(t, http.MethodPatch, "/api/payment/:id/confirm/", path+"/confirm/", map[string]any{"client_secret": "nope"}, actor, h.Confirm)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid client secret."}`, w.Body.String())

	w = serve(t, http.MethodPatch, "/api/payment/:id/confirm/", path+"/confirm/", map[string]any{}, actor, h.Confirm)
	assert.JSONEq(t, `{"client_secret":["This field is required."]}`, w.Body.String())

	w = serve(t, http.MethodPatch, "/api/payment/:id/confirm/", path+"/confirm/", map[string]any{"client_secret": "pi_123_secret_abc"}, actor, h.Confirm)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"succeeded"}`, w.Body.String())

	w = serve(t, http.MethodGet, "/api/payment/:id/status/", path+"/status/", nil, actor, h.Status)
	assert.JSONEq(t, `{"status":"paid"}`, w.Body.String())
}

func TestInitiateGatewayRefusal(t *testing.T) {
	actor := buyer()
	svc := newPayments(actor)
	svc.gatewayErr = &payment.GatewayError{Message: "Your card was declined.", Code: "card_declined"}
	h := NewPaymentHandler(svc, zap.NewNop())

	w := serve(t, http.MethodPatch, "/api/payment/:id/initiate/", "/api/payment/"+svc.id.String()+"/initiate/", card, actor, h.Initiate)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Your card was declined."}`, w.Body.String())
}

func TestPaymentOwnership(t *testing.T) {
	actor := buyer()
	svc := newPayments(actor)
	h := NewPaymentHandler(svc, zap.NewNop())

	w := serve(t, http.MethodGet, "/api/payment/:id/status/", "/api/payment/"+svc.id.String()+"/status/", nil, buyer(), h.Status)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, http.MethodGet, "/api/payment/:id/status/", "/api/payment/"+uuid.NewString()+"/status/", nil, actor, h.Status)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, http.MethodGet, "/api/payment/:id/status/", "/api/payment/not-a-uuid/status/", nil, actor, h.Status)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelThenLink(t *testing.T) {
	actor := buyer()
	svc := newPayments(actor)
	h := NewPaymentHandler(svc, zap.NewNop())
	path := "/api/payment/" + svc.id.String()

	w := serve(t, http.MethodPatch, "/api/payment/:id/create/link/", path+"/create/link/", nil, actor, h.CreateLink)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["url"], "checkout.stripe.com")

	w = serve(t, http.MethodPatch, "/api/payment/:id/cancel/", path+"/cancel/", nil, actor, h.Cancel)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"detail":"Order successfully canceled."}`, w.Body.String())

	w = serve(t, http.MethodPatch, "/api/payment/:id/create/link/", path+"/create/link/", nil, actor, h.CreateLink)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Order already canceled."}`, w.Body.String())
}

func TestSuccess(t *testing.T) {
	actor := buyer()
	svc := newPayments(actor)
	h := NewPaymentHandler(svc, zap.NewNop())

	w := serve(t, http.MethodPatch, "/api/payment/:id/success/", "/api/payment/"+svc.id.String()+"/success/", nil, actor, h.Success)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"detail":"Order updated successfully."}`, w.Body.String())
	assert.Equal(t, models.OrderPaid, svc.status)
}
