package offsets

import (
	"context"
	"errors"
	"time"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/application/ledger"
	"carbonpay-backend/internal/application/projects"
	"carbonpay-backend/internal/application/purchases"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"
	"carbonpay-backend/internal/infrastructure/metrics"
	"carbonpay-backend/internal/pkg/checked"
	"carbonpay-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB      *gorm.DB
	Ledger  *ledger.Service
	Assets  assets.Transferer
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// RequestOffsetInput retires Amount credits of a purchase. ProjectID and
// ReceiptAssetID are optional assertions; uuid.Nil skips the check.
type RequestOffsetInput struct {
	Requester      string
	PurchaseID     uuid.UUID
	Amount         uint64
	RequestID      string
	ProjectID      uuid.UUID
	ReceiptAssetID uuid.UUID
}

// RequestOffsetResult is the committed request and the purchase after it.
type RequestOffsetResult struct {
	OffsetRequest *domain.OffsetRequest `json:"offset_request"`
	Purchase      *domain.Purchase      `json:"purchase"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// RequestOffset burns the requester's current receipt, re-mints one for the
// remaining balance when anything is left and adds amount to the ledger's
// retired total. The effects are final when this returns; the request is
// recorded as pending review.
func (s *Service) RequestOffset(ctx context.Context, in RequestOffsetInput) (*RequestOffsetResult, error) {
	var result RequestOffsetResult
	var committed *domain.Ledger

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			purchase   *domain.Purchase
			project    *domain.Project
			capability ledger.Capability
		)
		if err := validation.Run(
			validation.Present(in.Requester, domain.ErrInvalidBuyer),
			validation.Require(len(in.RequestID) > 0 && len(in.RequestID) <= domain.MaxRequestIDLen, domain.ErrInvalidRequestID),
			func() error {
				var err error
				purchase, err = purchases.Load(tx, in.PurchaseID)
				return err
			},
			func() error {
				if purchase.BuyerIdentity != in.Requester {
					return domain.ErrNotPurchaseOwner
				}
				return nil
			},
			func() error {
				if in.ProjectID != uuid.Nil && in.ProjectID != purchase.ProjectID {
					return domain.ErrInvalidProject
				}
				var err error
				project, err = projects.Load(tx, purchase.ProjectID)
				return err
			},
			validation.Require(in.Amount > 0, domain.ErrInvalidAmount),
			func() error {
				if in.Amount > purchase.RemainingAmount {
					return domain.ErrInsufficientRemainingTokens
				}
				return nil
			},
			func() error {
				if in.ReceiptAssetID != uuid.Nil && in.ReceiptAssetID != purchase.ReceiptAssetID {
					return domain.ErrInvalidReceiptAsset
				}
				return nil
			},
			func() error {
				held, err := s.Assets.Balance(tx, purchase.ReceiptAssetID, in.Requester)
				if err != nil {
					return err
				}
				if held == 0 {
					return domain.ErrInvalidReceiptAccount
				}
				return nil
			},
			func() error {
				var err error
				if capability, err = s.Ledger.Capability(tx); err != nil {
					return err
				}
				if project.IssuingAuthority != capability.Address() {
					return domain.ErrInvalidPlatformAuthority
				}
				return nil
			},
			func() error { return s.checkUnused(tx, in) },
		); err != nil {
			return err
		}

		if err := s.Assets.Burn(tx, purchase.ReceiptAssetID, in.Requester, 1); err != nil {
			return err
		}
		remaining, err := checked.Sub(purchase.RemainingAmount, in.Amount)
		if err != nil {
			return err
		}

		burned := purchase.ReceiptAssetID
		updates := map[string]interface{}{"remaining_amount": remaining}
		var newReceipt *uuid.UUID
		if remaining > 0 {
			authority := capability.Address()
			mint, err := s.Assets.CreateMint(tx, assets.MintSpec{
				Kind:      domain.AssetReceipt,
				Authority: authority,
				Metadata:  purchases.ReceiptMetadata(project, purchase.Amount, remaining),
			})
			if err != nil {
				return err
			}
			if err := s.Assets.MintTo(tx, mint.MintID, in.Requester, 1, authority); err != nil {
				return err
			}
			newReceipt = &mint.MintID
			updates["receipt_asset_id"] = mint.MintID
		}
		if err := database.UpdateVersioned(tx, &domain.Purchase{}, "purchase_id", purchase.PurchaseID, purchase.Version, updates); err != nil {
			return err
		}
		purchase.RemainingAmount = remaining
		purchase.Version++
		if newReceipt != nil {
			purchase.ReceiptAssetID = *newReceipt
		}

		if committed, err = s.Ledger.RecordOffset(tx, in.Amount); err != nil {
			return err
		}

		req := domain.OffsetRequest{
			RequesterIdentity: in.Requester,
			PurchaseID:        purchase.PurchaseID,
			RequestID:         in.RequestID,
			ProjectID:         purchase.ProjectID,
			Amount:            in.Amount,
			Status:            domain.RequestPending,
			BurnedReceiptID:   burned,
			NewReceiptID:      newReceipt,
			RequestedAt:       s.now(),
		}
		if err := tx.Create(&req).Error; err != nil {
			if database.IsDuplicate(err) {
				return domain.ErrOffsetRequestExists
			}
			return err
		}

		result = RequestOffsetResult{OffsetRequest: &req, Purchase: purchase}
		return nil
	})
	s.Metrics.Observe("request_offset", err)
	if err != nil {
		return nil, err
	}
	s.Ledger.PublishTotals(committed)
	log.Info().
		Str("offset_request_id", result.OffsetRequest.OffsetRequestID.String()).
		Str("purchase_id", in.PurchaseID.String()).
		Uint64("amount", in.Amount).
		Uint64("remaining", result.Purchase.RemainingAmount).
		Msg("offset recorded")
	return &result, nil
}

func (s *Service) checkUnused(tx *gorm.DB, in RequestOffsetInput) error {
	var count int64
	if err := tx.Model(&domain.OffsetRequest{}).
		Where("requester_identity = ? AND purchase_id = ? AND request_id = ?", in.Requester, in.PurchaseID, in.RequestID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrOffsetRequestExists
	}
	return nil
}

// ReviewOffsetRequest records the admin's decision on a pending request. It only
// changes status and never touches balances, receipts or ledger totals.
func (s *Service) ReviewOffsetRequest(ctx context.Context, processor string, offsetRequestID uuid.UUID, decision domain.RequestStatus) (*domain.OffsetRequest, error) {
	var req *domain.OffsetRequest

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validation.Run(
			func() error {
				l, err := s.Ledger.Load(tx)
				if err != nil {
					return err
				}
				if processor == "" || processor != l.AdminIdentity {
					return domain.ErrUnauthorizedAdmin
				}
				return nil
			},
			func() error {
				var err error
				req, err = Load(tx, offsetRequestID)
				return err
			},
			func() error {
				if !CanTransition(req.Status, decision) {
					return domain.ErrInvalidRequestStatus
				}
				return nil
			},
		); err != nil {
			return err
		}

		processedAt := s.now()
		if err := database.UpdateVersioned(tx, &domain.OffsetRequest{}, "offset_request_id", req.OffsetRequestID, req.Version, map[string]interface{}{
			"status":             string(decision),
			"processed_at":       processedAt,
			"processor_identity": processor,
		}); err != nil {
			return err
		}
		req.Status = decision
		req.ProcessedAt = &processedAt
		req.ProcessorIdentity = &processor
		req.Version++
		return nil
	})
	s.Metrics.Observe("review_offset", err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("offset_request_id", offsetRequestID.String()).Str("status", string(decision)).Str("processor", processor).Msg("offset request reviewed")
	return req, nil
}

func (s *Service) GetOffsetRequest(ctx context.Context, offsetRequestID uuid.UUID) (*domain.OffsetRequest, error) {
	return Load(s.DB.WithContext(ctx), offsetRequestID)
}

// ListOffsetRequests returns the requests made against a purchase, oldest first.
func (s *Service) ListOffsetRequests(ctx context.Context, purchaseID uuid.UUID) ([]domain.OffsetRequest, error) {
	var out []domain.OffsetRequest
	if err := s.DB.WithContext(ctx).Where("purchase_id = ?", purchaseID).Order("requested_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads an offset request inside tx.
func Load(tx *gorm.DB, offsetRequestID uuid.UUID) (*domain.OffsetRequest, error) {
	var r domain.OffsetRequest
	if err := tx.Where("offset_request_id = ?", offsetRequestID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidOffsetRequest
		}
		return nil, err
	}
	return &r, nil
}
