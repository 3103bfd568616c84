package middleware

import (
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals(userLocal)
		if user == nil || SessionIdentity(c) == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals("auth", user)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// SessionIdentity returns the ledger identity of the logged-in user, or "".
func SessionIdentity(c *fiber.Ctx) string {
	return sessionField(GetUser(c), "identity")
}

// SessionUserID returns the login id of the session user, or "".
func SessionUserID(c *fiber.Ctx) string {
	return sessionField(GetUser(c), "user_id")
}

// SessionRole returns the role of the logged-in user, or "".
func SessionRole(c *fiber.Ctx) string {
	return sessionField(GetUser(c), "role")
}

func sessionField(user interface{}, key string) string {
	m, ok := user.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
