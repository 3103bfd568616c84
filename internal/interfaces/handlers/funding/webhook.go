package funding

import (
	"encoding/json"
	"fmt"
	"time"

	fundingsvc "carbonpay-backend/internal/application/funding"
	"carbonpay-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const signatureTolerance = 5 * time.Minute

type WebhookHandler struct {
	Service       *fundingsvc.Service
	WebhookSecret string
}

// HandleWebhook POST /api/v1/stripe/webhook: raw body, signature verification, then credit.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}
	if wh.WebhookSecret == "" {
		log.Warn().Msg("Stripe webhook secret is not configured")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: missing secret")
	}

	event, err := webhook.ConstructEventWithOptions(rawBody, sig, wh.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                signatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Msg("Stripe webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded || event.Data == nil {
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Stripe webhook payment intent parse failed")
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	_, err = wh.Service.CreditSucceededIntent(c.UserContext(), fundingsvc.SucceededIntent{
		ID:             pi.ID,
		EventID:        event.ID,
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
		Status:         string(pi.Status),
		Metadata:       pi.Metadata,
		Raw:            event.Data.Raw,
	})
	if err != nil {
		// Ledger rejections are final; anything else is answered 500 so Stripe redelivers.
		if domain.KindOf(err) != "" {
			log.Error().Err(err).Str("payment_intent_id", pi.ID).Msg("funding rejected")
			return c.Status(fiber.StatusOK).SendString("ok")
		}
		log.Error().Err(err).Str("payment_intent_id", pi.ID).Msg("funding failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Webhook Error: processing failed")
	}
	return c.Status(fiber.StatusOK).SendString("ok")
}
