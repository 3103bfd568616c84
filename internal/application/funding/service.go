package funding

import (
	"context"
	"errors"
	"strconv"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/application/ledger"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"
	"carbonpay-backend/internal/infrastructure/metrics"
	"carbonpay-backend/internal/pkg/checked"
	"carbonpay-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// DefaultCurrency is charged when no currency is configured.
	DefaultCurrency = "usd"
	// UnitsPerCent converts one cent into payment asset base units (6 decimals).
	UnitsPerCent = 10_000

	metaBuyer  = "buyer_identity"
	metaAmount = "payment_amount"
)

// ErrNotConfigured is returned when no intent creator or treasury is wired.
var ErrNotConfigured = errors.New("funding is not configured")

// Service moves fiat into the payment asset. The treasury is the payment
// mint's authority; only this service signs with it.
type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Assets   assets.Transferer
	Metrics  *metrics.Metrics
	Intents  IntentCreator
	Treasury string
	Currency string
}

// SucceededIntent is the part of a settled Stripe PaymentIntent the webhook hands over.
type SucceededIntent struct {
	ID             string
	EventID        string
	AmountReceived int64
	Currency       string
	Status         string
	Metadata       map[string]string
	Raw            []byte
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return DefaultCurrency
	}
	return s.Currency
}

// CreatePaymentMint creates the payment asset with the treasury as its authority.
func (s *Service) CreatePaymentMint(ctx context.Context, admin string) (*domain.Mint, error) {
	if err := validation.Run(
		validation.Present(admin, domain.ErrUnauthorizedAdmin),
		validation.Present(s.Treasury, ErrNotConfigured),
	); err != nil {
		return nil, err
	}
	var mint *domain.Mint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		mint, err = s.Assets.CreateMint(tx, assets.MintSpec{
			Kind:      domain.AssetPayment,
			Decimals:  domain.PaymentAssetDecimals,
			Authority: s.Treasury,
		})
		return err
	})
	s.Metrics.Observe("create_payment_mint", err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("mint_id", mint.MintID.String()).Str("admin", admin).Msg("payment mint created")
	return mint, nil
}

// CreateFundingIntent opens a Stripe PaymentIntent for amountCents. The
// webhook credits amountCents*UnitsPerCent payment units to buyer once it settles.
func (s *Service) CreateFundingIntent(ctx context.Context, buyer string, amountCents int64) (*Intent, error) {
	var units uint64
	if err := validation.Run(
		validation.Present(buyer, domain.ErrInvalidBuyer),
		validation.Require(amountCents > 0, domain.ErrInvalidAmount),
		func() error {
			var err error
			if units, err = checked.Mul(uint64(amountCents), UnitsPerCent); err != nil {
				return err
			}
			return checked.Storable(units)
		},
		func() error {
			_, err := s.Ledger.Get(ctx)
			return err
		},
		func() error {
			if s.Intents == nil {
				return ErrNotConfigured
			}
			return nil
		},
	); err != nil {
		s.Metrics.Observe("create_funding_intent", err)
		return nil, err
	}

	intent, err := s.Intents.Create(amountCents, s.currency(), map[string]string{
		metaBuyer:  buyer,
		metaAmount: strconv.FormatUint(units, 10),
	})
	s.Metrics.Observe("create_funding_intent", err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("buyer", buyer).Str("payment_intent_id", intent.ID).Uint64("payment_amount", units).Msg("funding intent created")
	return intent, nil
}

// CreditSucceededIntent mints the intent's payment_amount to its buyer. It is
// idempotent per payment intent id and reports whether anything was credited.
// Intents without funding metadata are skipped.
func (s *Service) CreditSucceededIntent(ctx context.Context, pi SucceededIntent) (bool, error) {
	buyer := pi.Metadata[metaBuyer]
	amount, err := strconv.ParseUint(pi.Metadata[metaAmount], 10, 64)
	if buyer == "" || err != nil || amount == 0 {
		log.Warn().Str("payment_intent_id", pi.ID).Msg("payment intent has no funding metadata, skipping")
		return false, nil
	}
	if err := checked.Storable(amount); err != nil {
		s.Metrics.Observe("credit_funding", err)
		return false, err
	}
	if s.Treasury == "" {
		return false, ErrNotConfigured
	}

	credited := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Payment{}).Where("stripe_payment_intent_id = ?", pi.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		l, err := s.Ledger.Load(tx)
		if err != nil {
			return err
		}

		raw := pi.Raw
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		payment := domain.Payment{
			StripePaymentIntentID: pi.ID,
			StripeEventID:         pi.EventID,
			BuyerIdentity:         buyer,
			PaymentAssetID:        l.PaymentAssetID,
			CreditedAmount:        amount,
			AmountPaidCents:       pi.AmountReceived,
			Currency:              pi.Currency,
			Status:                pi.Status,
			RawPaymentIntent:      datatypes.JSON(raw),
		}
		if err := tx.Create(&payment).Error; err != nil {
			if database.IsDuplicate(err) {
				return nil
			}
			return err
		}
		if err := s.Assets.MintTo(tx, l.PaymentAssetID, buyer, amount, s.Treasury); err != nil {
			return err
		}
		credited = true
		return nil
	})
	s.Metrics.Observe("credit_funding", err)
	if err != nil {
		return false, err
	}
	if credited {
		log.Info().Str("buyer", buyer).Str("payment_intent_id", pi.ID).Uint64("payment_amount", amount).Msg("buyer funded")
	} else {
		log.Info().Str("payment_intent_id", pi.ID).Msg("payment intent already credited")
	}
	return credited, nil
}
