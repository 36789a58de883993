package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"
)

func TestToMinorUnits(t *testing.T) {
	for in, want := range map[string]int64{
		"0":      0,
		"10":     1000,
		"19.99":  1999,
		"0.005":  1,
		"1234.5": 123450,
		"99.994": 9999,
	} {
		assert.Equal(t, want, ToMinorUnits(decimal.RequireFromString(in)), in)
	}
}

func TestWrapKeepsStripeMessage(t *testing.T) {
	g := &StripeGateway{logger: zap.NewNop()}
	err := g.wrap(&stripe.Error{Msg: "Your card was declined.", Code: stripe.ErrorCodeCardDeclined}, "confirm")

	var ge *GatewayError
	if assert.True(t, errors.As(err, &ge)) {
		assert.Equal(t, "Your card was declined.", ge.Message)
		assert.Equal(t, "card_declined", ge.Code)
	}
}

func TestWrapGenericError(t *testing.T) {
	g := &StripeGateway{logger: zap.NewNop()}
	err := g.wrap(errors.New("connection reset"), "create")

	var ge *GatewayError
	if assert.True(t, errors.As(err, &ge)) {
		assert.Equal(t, "connection reset", ge.Message)
	}
}
