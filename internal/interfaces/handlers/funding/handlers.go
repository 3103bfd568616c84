package funding

import (
	"errors"

	fundingsvc "carbonpay-backend/internal/application/funding"
	"carbonpay-backend/internal/middleware"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *fundingsvc.Service
}

// CreatePaymentMint POST /api/v1/assets/payment-mint
func (h *Handlers) CreatePaymentMint(c *fiber.Ctx) error {
	mint, err := h.Service.CreatePaymentMint(c.UserContext(), middleware.SessionIdentity(c))
	if errors.Is(err, fundingsvc.ErrNotConfigured) {
		return response.Error(c, "Treasury authority is not configured", fiber.StatusServiceUnavailable, nil)
	}
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Payment mint created", mint, nil)
}

// CreateIntent POST /api/v1/funding/create-intent. Only creates the Stripe
// PaymentIntent; the buyer is credited by the webhook once it succeeds.
func (h *Handlers) CreateIntent(c *fiber.Ctx) error {
	var body struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	intent, err := h.Service.CreateFundingIntent(c.UserContext(), middleware.SessionIdentity(c), body.AmountCents)
	if errors.Is(err, fundingsvc.ErrNotConfigured) {
		return response.Error(c, "Stripe not configured", fiber.StatusServiceUnavailable, nil)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Payment intent created", intent, nil)
}
