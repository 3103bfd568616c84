package purchases

import (
	"context"
	"errors"
	"strconv"
	"time"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/application/ledger"
	"carbonpay-backend/internal/application/projects"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"
	"carbonpay-backend/internal/infrastructure/metrics"
	"carbonpay-backend/internal/pkg/checked"
	"carbonpay-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReceiptSymbol is the token symbol of every purchase receipt.
const ReceiptSymbol = "CPR"

type Service struct {
	DB      *gorm.DB
	Ledger  *ledger.Service
	Assets  assets.Transferer
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// PurchaseInput is a buyer's order. Payee, when set, is the owner the buyer
// expects to be paid; a mismatch rejects the order.
type PurchaseInput struct {
	Buyer     string
	ProjectID uuid.UUID
	Amount    uint64
	Payee     string
}

// PurchaseResult is the committed purchase with its price breakdown.
type PurchaseResult struct {
	Purchase *domain.Purchase `json:"purchase"`
	Total    uint64           `json:"total"`
	Fee      uint64           `json:"fee"`
	ToOwner  uint64           `json:"to_owner"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Purchase pays the project owner and the fee vault, moves amount credits out of
// the project vault under the ledger capability and binds a new receipt to the
// buyer. Any failure leaves every record and balance as it was.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	var result PurchaseResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			project             *domain.Project
			l                   *domain.Ledger
			capability          ledger.Capability
			total, fee, toOwner uint64
		)
		if err := validation.Run(
			validation.Present(in.Buyer, domain.ErrInvalidBuyer),
			func() error {
				var err error
				project, err = projects.Load(tx, in.ProjectID)
				return err
			},
			func() error {
				if !project.IsActive {
					return domain.ErrProjectInactive
				}
				return nil
			},
			validation.Require(in.Amount > 0, domain.ErrInvalidAmount),
			func() error {
				if in.Amount > project.RemainingSupply {
					return domain.ErrInsufficientTokens
				}
				return nil
			},
			func() error {
				if in.Payee != "" && in.Payee != project.OwnerIdentity {
					return domain.ErrInvalidProjectOwner
				}
				return nil
			},
			func() error {
				var err error
				if l, err = s.Ledger.Load(tx); err != nil {
					return err
				}
				if capability, err = s.Ledger.Capability(tx); err != nil {
					return err
				}
				if project.IssuingAuthority != capability.Address() {
					return domain.ErrInvalidPlatformAuthority
				}
				return nil
			},
			func() error {
				var err error
				if total, fee, toOwner, err = Quote(in.Amount, project.PricePerUnit, project.FeeRateBps); err != nil {
					return err
				}
				return checked.Storable(total)
			},
		); err != nil {
			return err
		}
		authority := capability.Address()

		if err := s.Assets.Transfer(tx, l.PaymentAssetID, in.Buyer, project.OwnerIdentity, toOwner, in.Buyer); err != nil {
			return err
		}
		if err := s.Assets.Transfer(tx, l.PaymentAssetID, in.Buyer, authority, fee, in.Buyer); err != nil {
			return err
		}

		receipt, err := s.Assets.CreateMint(tx, assets.MintSpec{
			Kind:      domain.AssetReceipt,
			Authority: authority,
			Metadata:  ReceiptMetadata(project, in.Amount, in.Amount),
		})
		if err != nil {
			return err
		}
		if err := s.Assets.MintTo(tx, receipt.MintID, in.Buyer, 1, authority); err != nil {
			return err
		}
		if err := s.Assets.Transfer(tx, project.UnderlyingAssetID, authority, in.Buyer, in.Amount, authority); err != nil {
			return err
		}

		purchase := domain.Purchase{
			BuyerIdentity:   in.Buyer,
			ProjectID:       project.ProjectID,
			ReceiptAssetID:  receipt.MintID,
			Amount:          in.Amount,
			RemainingAmount: in.Amount,
			TotalPaid:       total,
			FeePaid:         fee,
			PurchasedAt:     s.now(),
		}
		if err := tx.Create(&purchase).Error; err != nil {
			if database.IsDuplicate(err) {
				return domain.ErrPurchaseExists
			}
			return err
		}

		remaining, err := checked.Sub(project.RemainingSupply, in.Amount)
		if err != nil {
			return err
		}
		if err := database.UpdateVersioned(tx, &domain.Project{}, "project_id", project.ProjectID, project.Version, map[string]interface{}{
			"remaining_supply": remaining,
		}); err != nil {
			return err
		}

		result = PurchaseResult{Purchase: &purchase, Total: total, Fee: fee, ToOwner: toOwner}
		return nil
	})
	s.Metrics.Observe("purchase", err)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("purchase_id", result.Purchase.PurchaseID.String()).
		Str("buyer", in.Buyer).
		Uint64("amount", in.Amount).
		Uint64("total", result.Total).
		Uint64("fee", result.Fee).
		Msg("purchase committed")
	return &result, nil
}

// ReceiptMetadata describes the receipt bound to a purchase with remaining
// unretired credits.
func ReceiptMetadata(project *domain.Project, amount, remaining uint64) *domain.AssetMetadata {
	return &domain.AssetMetadata{
		Name:                 project.ReceiptSymbol + " Receipt",
		Symbol:               ReceiptSymbol,
		URI:                  project.ReceiptURI,
		SellerFeeBasisPoints: project.FeeRateBps,
		Creator:              project.IssuingAuthority,
		Attributes: map[string]string{
			"amount":    strconv.FormatUint(amount, 10),
			"remaining": strconv.FormatUint(remaining, 10),
			"project":   project.ProjectID.String(),
		},
	}
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID uuid.UUID) (*domain.Purchase, error) {
	return Load(s.DB.WithContext(ctx), purchaseID)
}

// ListPurchases returns a buyer's purchases, newest first.
func (s *Service) ListPurchases(ctx context.Context, buyer string) ([]domain.Purchase, error) {
	var out []domain.Purchase
	if err := s.DB.WithContext(ctx).Where("buyer_identity = ?", buyer).Order("purchased_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads a purchase inside tx.
func Load(tx *gorm.DB, purchaseID uuid.UUID) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := tx.Where("purchase_id = ?", purchaseID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidPurchase
		}
		return nil, err
	}
	return &p, nil
}
