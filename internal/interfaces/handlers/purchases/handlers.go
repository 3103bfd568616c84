package purchases

import (
	purchasesvc "carbonpay-backend/internal/application/purchases"
	"carbonpay-backend/internal/middleware"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *purchasesvc.Service
}

// Purchase POST /api/v1/purchases/purchase. The caller is the buyer and pays
// from their own payment asset account.
func (h *Handlers) Purchase(c *fiber.Ctx) error {
	var body struct {
		ProjectID    string `json:"project_id"`
		Amount       uint64 `json:"amount"`
		ProjectOwner string `json:"project_owner"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	projectID, err := uuid.Parse(body.ProjectID)
	if err != nil {
		return response.Error(c, "project_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	res, err := h.Service.Purchase(c.UserContext(), purchasesvc.PurchaseInput{
		Buyer:     middleware.SessionIdentity(c),
		ProjectID: projectID,
		Amount:    body.Amount,
		Payee:     body.ProjectOwner,
	})
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Credits purchased", res, nil)
}

// ListPurchases GET /api/v1/purchases lists the caller's purchases.
func (h *Handlers) ListPurchases(c *fiber.Ctx) error {
	list, err := h.Service.ListPurchases(c.UserContext(), middleware.SessionIdentity(c))
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Purchases retrieved", list, fiber.Map{"count": len(list)})
}

// GetPurchase GET /api/v1/purchases/:id
func (h *Handlers) GetPurchase(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid purchase id", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.GetPurchase(c.UserContext(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Purchase retrieved", p, nil)
}
