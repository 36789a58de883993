package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"marketplace_back_end/internal/models"
)

func TestOTPEmail(t *testing.T) {
	email := OTPEmail("042137", 2*time.Minute)

	assert.Equal(t, "Your verification code", email.Subject)
	assert.Contains(t, email.HTML, "042137")
	assert.Contains(t, email.HTML, "2m0s")
}

func TestWelcomeEmailEscapesName(t *testing.T) {
	email := WelcomeEmail("<b>Ann</b>")
	assert.NotContains(t, email.HTML, "<b>Ann</b>")
}

func TestOrderStatusEmail(t *testing.T) {
	o := models.Order{
		ID:     uuid.MustParse("9b2f0c8e-1111-2222-3333-444455556666"),
		Status: models.OrderShipped,
		Amount: decimal.RequireFromString("42.5"),
	}

	email := OrderStatusEmail(o)
	assert.Equal(t, "Order #9b2f0c8e is shipped", email.Subject)
	assert.Contains(t, email.HTML, "has been shipped")
	assert.Contains(t, email.HTML, "42.50")
}
