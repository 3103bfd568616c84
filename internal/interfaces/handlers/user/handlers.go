package user

import (
	"errors"

	policies "carbonpay-backend/internal/application/policies/user"
	usersvc "carbonpay-backend/internal/application/user"
	"carbonpay-backend/internal/middleware"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers exposes user administration.
type Handlers struct {
	Service *usersvc.Service
}

// ListUsers GET /api/v1/users?role=
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.Service.ListUsers(c.UserContext(), c.Query("role"))
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Users retrieved", users, fiber.Map{"count": len(users)})
}

// ViewUser GET /api/v1/users/view-user returns the session user's record.
func (h *Handlers) ViewUser(c *fiber.Ctx) error {
	u, err := h.Service.ViewUser(c.UserContext(), middleware.SessionUserID(c))
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "User retrieved", fiber.Map{"user": u}, nil)
}

// UpdateUser PUT /api/v1/users/update-user renames the session user.
func (h *Handlers) UpdateUser(c *fiber.Ctx) error {
	var body struct {
		Fullname string `json:"fullname"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	u, err := h.Service.UpdateFullname(c.UserContext(), middleware.SessionUserID(c), body.Fullname)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "User updated", fiber.Map{"user": u}, nil)
}

// UpdateRole PATCH /api/v1/users/update-role
func (h *Handlers) UpdateRole(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if _, err := uuid.Parse(body.UserID); err != nil {
		return response.Error(c, "user_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	u, err := h.Service.UpdateUserRole(c.UserContext(), usersvc.UpdateUserRoleInput{
		ActorUserID:  middleware.SessionUserID(c),
		TargetUserID: body.UserID,
		TargetRole:   body.Role,
	})
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "User role updated", fiber.Map{"user": u}, nil)
}

// RemoveUser DELETE /api/v1/users/remove-user
func (h *Handlers) RemoveUser(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if _, err := uuid.Parse(body.UserID); err != nil {
		return response.Error(c, "user_id must be a valid UUID", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.RemoveUser(c.UserContext(), middleware.SessionUserID(c), body.UserID); err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "User removed", nil, nil)
}

func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usersvc.ErrMissingUserID), errors.Is(err, usersvc.ErrNoUpdates), errors.Is(err, policies.ErrInvalidRole):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, usersvc.ErrUserNotFound), errors.Is(err, policies.ErrTargetUserNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, policies.ErrUsersCannotModifyTheirOwnRole), errors.Is(err, policies.ErrUsersCannotRemoveThemselves):
		return response.Error(c, err.Error(), fiber.StatusForbidden, nil)
	case errors.Is(err, policies.ErrPlatformMustHaveAnAdmin):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("user administration failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}
