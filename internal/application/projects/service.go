package projects

import (
	"context"
	"errors"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/application/ledger"
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
}

// CreateProjectInput is what a project owner submits to register supply.
type CreateProjectInput struct {
	Owner        string
	TotalSupply  uint64
	PricePerUnit uint64
	FeeRateBps   uint64
	Receipt      domain.ReceiptDescriptor
}

func (in CreateProjectInput) checks() []validation.Check {
	return []validation.Check{
		validation.Require(in.TotalSupply > 0 && in.TotalSupply <= checked.MaxStorable, domain.ErrInvalidAmount),
		validation.Require(in.PricePerUnit <= checked.MaxStorable, domain.ErrInvalidAmount),
		validation.Require(in.FeeRateBps <= domain.MaxFeeRateBps, domain.ErrInvalidFeeRate),
		validation.MaxBytes(in.Receipt.Name, domain.MaxReceiptNameLen, domain.ErrInvalidReceiptDescriptor),
		validation.MaxBytes(in.Receipt.Symbol, domain.MaxReceiptSymbolLen, domain.ErrInvalidReceiptDescriptor),
		validation.MaxBytes(in.Receipt.URI, domain.MaxReceiptURILen, domain.ErrInvalidReceiptDescriptor),
		validation.Present(in.Owner, domain.ErrInvalidProjectOwner),
	}
}

// CreateProject registers a project, locks its whole supply in a vault owned by
// the ledger capability and revokes the owner's minting rights.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*domain.Project, error) {
	var project domain.Project
	var committed *domain.Ledger

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var capability ledger.Capability
		checks := append(in.checks(), func() error {
			var err error
			capability, err = s.Ledger.Capability(tx)
			return err
		})
		if err := validation.Run(checks...); err != nil {
			return err
		}
		authority := capability.Address()

		underlying, err := s.Assets.CreateMint(tx, assets.MintSpec{
			Kind:      domain.AssetFungible,
			Authority: in.Owner,
		})
		if err != nil {
			return err
		}
		provenance, err := s.Assets.CreateMint(tx, assets.MintSpec{
			Kind:      domain.AssetReceipt,
			Authority: in.Owner,
			Metadata: &domain.AssetMetadata{
				Name:                 in.Receipt.Name,
				Symbol:               in.Receipt.Symbol,
				URI:                  in.Receipt.URI,
				SellerFeeBasisPoints: uint16(in.FeeRateBps),
				Creator:              in.Owner,
			},
		})
		if err != nil {
			return err
		}
		if err := s.Assets.MintTo(tx, provenance.MintID, authority, 1, in.Owner); err != nil {
			return err
		}
		if err := s.Assets.SetMintAuthority(tx, underlying.MintID, in.Owner, authority); err != nil {
			return err
		}
		if err := s.Assets.MintTo(tx, underlying.MintID, authority, in.TotalSupply, authority); err != nil {
			return err
		}
		vault, err := s.Assets.Account(tx, underlying.MintID, authority)
		if err != nil {
			return err
		}

		project = domain.Project{
			OwnerIdentity:     in.Owner,
			UnderlyingAssetID: underlying.MintID,
			ProvenanceAssetID: provenance.MintID,
			VaultAccountID:    vault.AccountID,
			IsActive:          true,
			TotalSupply:       in.TotalSupply,
			RemainingSupply:   in.TotalSupply,
			PricePerUnit:      in.PricePerUnit,
			FeeRateBps:        uint16(in.FeeRateBps),
			IssuingAuthority:  authority,
			ReceiptName:       in.Receipt.Name,
			ReceiptSymbol:     in.Receipt.Symbol,
			ReceiptURI:        in.Receipt.URI,
		}
		if err := tx.Create(&project).Error; err != nil {
			if database.IsDuplicate(err) {
				return domain.ErrProjectExists
			}
			return err
		}

		committed, err = s.Ledger.AddProjectCredits(tx, in.TotalSupply)
		return err
	})
	s.Metrics.Observe("create_project", err)
	if err != nil {
		return nil, err
	}
	s.Ledger.PublishTotals(committed)
	log.Info().Str("project_id", project.ProjectID.String()).Str("owner", in.Owner).Uint64("total_supply", in.TotalSupply).Msg("project created")
	return &project, nil
}

func (s *Service) GetProject(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	return Load(s.DB.WithContext(ctx), projectID)
}

// ListProjects returns projects newest first, optionally only those of owner.
func (s *Service) ListProjects(ctx context.Context, owner string) ([]domain.Project, error) {
	q := s.DB.WithContext(ctx).Order(`"createdAt" DESC`)
	if owner != "" {
		q = q.Where("owner_identity = ?", owner)
	}
	var out []domain.Project
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads a project inside tx.
func Load(tx *gorm.DB, projectID uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	if err := tx.Where("project_id = ?", projectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidProject
		}
		return nil, err
	}
	return &p, nil
}
