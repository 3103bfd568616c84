package ledger

import (
	"context"
	"errors"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"
	"carbonpay-backend/internal/infrastructure/metrics"
	"carbonpay-backend/internal/pkg/checked"
	"carbonpay-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "carbonpay"

// Service owns the global ledger singleton of one namespace.
type Service struct {
	DB        *gorm.DB
	Assets    assets.Transferer
	Namespace string
	Metrics   *metrics.Metrics
}

// AutoMigrate creates the tables private to the ledger package.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&capabilitySeed{})
}

func (s *Service) namespace() string {
	if s.Namespace == "" {
		return DefaultNamespace
	}
	return s.Namespace
}

// Initialize creates the ledger for this namespace with both counters at zero.
// The fee vault is the capability's account for the payment asset.
func (s *Service) Initialize(ctx context.Context, admin string, paymentAssetID uuid.UUID) (*domain.Ledger, error) {
	var created domain.Ledger
	ns := s.namespace()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validation.Run(
			validation.Present(admin, domain.ErrUnauthorizedAdmin),
			func() error { return s.checkPaymentAsset(tx, paymentAssetID) },
			func() error { return s.checkAbsent(tx, ns) },
		); err != nil {
			return err
		}

		seed, err := newSeed()
		if err != nil {
			return err
		}
		capability := deriveCapability(ns, seed)
		vault, err := s.Assets.Account(tx, paymentAssetID, capability.Address())
		if err != nil {
			return err
		}

		if err := tx.Create(&capabilitySeed{Namespace: ns, Seed: seed}).Error; err != nil {
			if database.IsDuplicate(err) {
				return domain.ErrAlreadyInitialized
			}
			return err
		}
		created = domain.Ledger{
			Namespace:         ns,
			AdminIdentity:     admin,
			PaymentAssetID:    paymentAssetID,
			FeeVaultID:        vault.AccountID,
			CapabilityAddress: capability.Address(),
		}
		if err := tx.Create(&created).Error; err != nil {
			if database.IsDuplicate(err) {
				return domain.ErrAlreadyInitialized
			}
			return err
		}
		return nil
	})
	s.Metrics.Observe("initialize_ledger", err)
	if err != nil {
		return nil, err
	}
	s.Metrics.SetLedgerTotals(0, 0)
	log.Info().Str("namespace", ns).Str("admin", admin).Str("capability", created.CapabilityAddress).Msg("ledger initialized")
	return &created, nil
}

func (s *Service) checkPaymentAsset(tx *gorm.DB, paymentAssetID uuid.UUID) error {
	mint, err := s.Assets.GetMint(tx, paymentAssetID)
	if errors.Is(err, domain.ErrAssetNotFound) {
		return domain.ErrInvalidPaymentAssetDescriptor
	}
	if err != nil {
		return err
	}
	if mint.Kind != domain.AssetPayment || mint.Decimals != domain.PaymentAssetDecimals {
		return domain.ErrInvalidPaymentAssetDescriptor
	}
	return nil
}

func (s *Service) checkAbsent(tx *gorm.DB, ns string) error {
	var count int64
	if err := tx.Model(&domain.Ledger{}).Where("namespace = ?", ns).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

// Get returns the committed ledger.
func (s *Service) Get(ctx context.Context) (*domain.Ledger, error) {
	return s.Load(s.DB.WithContext(ctx))
}

// Load reads the ledger inside tx.
func (s *Service) Load(tx *gorm.DB) (*domain.Ledger, error) {
	var l domain.Ledger
	if err := tx.Where("namespace = ?", s.namespace()).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLedgerNotInitialized
		}
		return nil, err
	}
	return &l, nil
}

// Capability re-derives the ledger capability inside tx.
func (s *Service) Capability(tx *gorm.DB) (Capability, error) {
	var cs capabilitySeed
	if err := tx.Where("namespace = ?", s.namespace()).First(&cs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Capability{}, domain.ErrLedgerNotInitialized
		}
		return Capability{}, err
	}
	return deriveCapability(cs.Namespace, cs.Seed), nil
}

// AddProjectCredits adds newly registered supply to total_credits_issued.
// On overflow nothing is written.
func (s *Service) AddProjectCredits(tx *gorm.DB, amount uint64) (*domain.Ledger, error) {
	l, err := s.Load(tx)
	if err != nil {
		return nil, err
	}
	if err := addIssued(l, amount); err != nil {
		return nil, err
	}
	if err := database.UpdateVersioned(tx, &domain.Ledger{}, "ledger_id", l.LedgerID, l.Version, map[string]interface{}{
		"total_credits_issued": l.TotalCreditsIssued,
	}); err != nil {
		return nil, err
	}
	l.Version++
	return l, nil
}

// RecordOffset adds retired credits to total_credits_offset.
func (s *Service) RecordOffset(tx *gorm.DB, amount uint64) (*domain.Ledger, error) {
	l, err := s.Load(tx)
	if err != nil {
		return nil, err
	}
	if err := addOffset(l, amount); err != nil {
		return nil, err
	}
	if err := database.UpdateVersioned(tx, &domain.Ledger{}, "ledger_id", l.LedgerID, l.Version, map[string]interface{}{
		"total_credits_offset": l.TotalCreditsOffset,
	}); err != nil {
		return nil, err
	}
	l.Version++
	return l, nil
}

// PublishTotals pushes committed counters to metrics.
func (s *Service) PublishTotals(l *domain.Ledger) {
	if l == nil {
		return
	}
	s.Metrics.SetLedgerTotals(l.TotalCreditsIssued, l.TotalCreditsOffset)
}

func addIssued(l *domain.Ledger, amount uint64) error {
	total, err := checked.Add(l.TotalCreditsIssued, amount)
	if err != nil {
		return err
	}
	if err := checked.Storable(total); err != nil {
		return err
	}
	l.TotalCreditsIssued = total
	return nil
}

func addOffset(l *domain.Ledger, amount uint64) error {
	total, err := checked.Add(l.TotalCreditsOffset, amount)
	if err != nil {
		return err
	}
	if err := checked.Storable(total); err != nil {
		return err
	}
	l.TotalCreditsOffset = total
	return nil
}
