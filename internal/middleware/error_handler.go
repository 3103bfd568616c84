package middleware

import (
	"errors"

	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Returns the standard error format.
// Ledger errors that escape a handler keep their mapped status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var ledgerErr *domain.Error
	if errors.As(err, &ledgerErr) {
		return response.LedgerError(c, err)
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("request failed")
	}
	return response.Error(c, message, code, nil)
}
