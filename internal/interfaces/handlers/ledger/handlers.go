package ledger

import (
	ledgersvc "carbonpay-backend/internal/application/ledger"
	"carbonpay-backend/internal/middleware"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *ledgersvc.Service
}

// Initialize POST /api/v1/ledger/initialize. The caller becomes the ledger admin.
func (h *Handlers) Initialize(c *fiber.Ctx) error {
	var body struct {
		PaymentAssetID string `json:"payment_asset_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	paymentAssetID, err := uuid.Parse(body.PaymentAssetID)
	if err != nil {
		return response.Error(c, "payment_asset_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	l, err := h.Service.Initialize(c.UserContext(), middleware.SessionIdentity(c), paymentAssetID)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Ledger initialized", l, nil)
}

// Get GET /api/v1/ledger
func (h *Handlers) Get(c *fiber.Ctx) error {
	l, err := h.Service.Get(c.UserContext())
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Ledger retrieved", l, nil)
}
