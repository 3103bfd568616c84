package funding

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// IntentCreator abstracts Stripe PaymentIntent creation for testability.
type IntentCreator interface {
	Create(amountCents int64, currency string, metadata map[string]string) (*Intent, error)
}

type Intent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
}

// StripeIntentCreator creates PaymentIntents through the Stripe API. It uses
// its own client so the package-level stripe.Key is never touched.
type StripeIntentCreator struct {
	SecretKey string
}

func (r *StripeIntentCreator) Create(amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	if r.SecretKey == "" {
		return nil, fiber.NewError(fiber.StatusNotImplemented, "Stripe integration pending")
	}
	client := paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: r.SecretKey}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := client.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
