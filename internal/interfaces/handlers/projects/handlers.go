package projects

import (
	projectsvc "carbonpay-backend/internal/application/projects"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/middleware"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *projectsvc.Service
}

// CreateProject POST /api/v1/projects/create-project. The caller is the project owner.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var body struct {
		TotalSupply  uint64 `json:"total_supply"`
		PricePerUnit uint64 `json:"price_per_unit"`
		FeeRateBps   uint64 `json:"fee_rate_bps"`
		Receipt      struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
			URI    string `json:"uri"`
		} `json:"receipt"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.CreateProject(c.UserContext(), projectsvc.CreateProjectInput{
		Owner:        middleware.SessionIdentity(c),
		TotalSupply:  body.TotalSupply,
		PricePerUnit: body.PricePerUnit,
		FeeRateBps:   body.FeeRateBps,
		Receipt: domain.ReceiptDescriptor{
			Name:   body.Receipt.Name,
			Symbol: body.Receipt.Symbol,
			URI:    body.Receipt.URI,
		},
	})
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Project created", p, nil)
}

// ListProjects GET /api/v1/projects?owner=
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	list, err := h.Service.ListProjects(c.UserContext(), c.Query("owner"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Projects retrieved", list, fiber.Map{"count": len(list)})
}

// GetProject GET /api/v1/projects/:id
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid project id", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.GetProject(c.UserContext(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Project retrieved", p, nil)
}
