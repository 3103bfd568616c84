package offsets

import (
	offsetsvc "carbonpay-backend/internal/application/offsets"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/middleware"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *offsetsvc.Service
}

// optionalUUID parses s, treating "" as not asserted.
func optionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

// RequestOffset POST /api/v1/offsets/request-offset
func (h *Handlers) RequestOffset(c *fiber.Ctx) error {
	var body struct {
		PurchaseID     string `json:"purchase_id"`
		Amount         uint64 `json:"amount"`
		RequestID      string `json:"request_id"`
		ProjectID      string `json:"project_id"`
		ReceiptAssetID string `json:"receipt_asset_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	purchaseID, err := uuid.Parse(body.PurchaseID)
	if err != nil {
		return response.Error(c, "purchase_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	projectID, err := optionalUUID(body.ProjectID)
	if err != nil {
		return response.Error(c, "project_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	receiptID, err := optionalUUID(body.ReceiptAssetID)
	if err != nil {
		return response.Error(c, "receipt_asset_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}

	res, err := h.Service.RequestOffset(c.UserContext(), offsetsvc.RequestOffsetInput{
		Requester:      middleware.SessionIdentity(c),
		PurchaseID:     purchaseID,
		Amount:         body.Amount,
		RequestID:      body.RequestID,
		ProjectID:      projectID,
		ReceiptAssetID: receiptID,
	})
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Offset recorded", res, nil)
}

// Review POST /api/v1/offsets/review
func (h *Handlers) Review(c *fiber.Ctx) error {
	var body struct {
		OffsetRequestID string `json:"offset_request_id"`
		Decision        string `json:"decision"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	id, err := uuid.Parse(body.OffsetRequestID)
	if err != nil {
		return response.Error(c, "offset_request_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	req, err := h.Service.ReviewOffsetRequest(c.UserContext(), middleware.SessionIdentity(c), id, domain.RequestStatus(body.Decision))
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Offset request reviewed", req, nil)
}

// GetOffsetRequest GET /api/v1/offsets/:id
func (h *Handlers) GetOffsetRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid offset request id", fiber.StatusBadRequest, nil)
	}
	req, err := h.Service.GetOffsetRequest(c.UserContext(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Offset request retrieved", req, nil)
}

// ListForPurchase GET /api/v1/purchases/:id/offsets
func (h *Handlers) ListForPurchase(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid purchase id", fiber.StatusBadRequest, nil)
	}
	list, err := h.Service.ListOffsetRequests(c.UserContext(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Offset requests retrieved", list, fiber.Map{"count": len(list)})
}
