package assets

import (
	"encoding/json"
	"errors"

	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"
	"carbonpay-backend/internal/pkg/checked"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transferer is what the ledger core needs from the asset transfer service.
// Every call takes the caller's transaction: an intent either commits with the
// enclosing operation or rolls back with it.
type Transferer interface {
	CreateMint(tx *gorm.DB, spec MintSpec) (*domain.Mint, error)
	GetMint(tx *gorm.DB, mintID uuid.UUID) (*domain.Mint, error)
	Account(tx *gorm.DB, mintID uuid.UUID, owner string) (*domain.TokenAccount, error)
	Balance(tx *gorm.DB, mintID uuid.UUID, owner string) (uint64, error)
	MintTo(tx *gorm.DB, mintID uuid.UUID, owner string, amount uint64, authority string) error
	Burn(tx *gorm.DB, mintID uuid.UUID, owner string, amount uint64) error
	Transfer(tx *gorm.DB, mintID uuid.UUID, from, to string, amount uint64, authority string) error
	SetMintAuthority(tx *gorm.DB, mintID uuid.UUID, current, next string) error
}

// MintSpec describes a new asset.
type MintSpec struct {
	Kind      domain.AssetKind
	Decimals  uint8
	Authority string
	SupplyCap uint64
	Metadata  *domain.AssetMetadata
}

// Service is the gorm-backed asset transfer service.
type Service struct{}

var _ Transferer = (*Service)(nil)

func (s *Service) CreateMint(tx *gorm.DB, spec MintSpec) (*domain.Mint, error) {
	if spec.Authority == "" {
		return nil, domain.ErrMintAuthorityMismatch
	}
	mint := domain.Mint{
		Kind:          spec.Kind,
		Decimals:      spec.Decimals,
		MintAuthority: spec.Authority,
		SupplyCap:     spec.SupplyCap,
	}
	if spec.Kind == domain.AssetReceipt {
		mint.Decimals = 0
		mint.SupplyCap = 1
	}
	if spec.Metadata != nil {
		b, err := json.Marshal(spec.Metadata)
		if err != nil {
			return nil, err
		}
		mint.Metadata = datatypes.JSON(b)
	}
	if err := tx.Create(&mint).Error; err != nil {
		return nil, err
	}
	return &mint, nil
}

func (s *Service) GetMint(tx *gorm.DB, mintID uuid.UUID) (*domain.Mint, error) {
	var mint domain.Mint
	if err := tx.Where("mint_id = ?", mintID).First(&mint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, err
	}
	return &mint, nil
}

// Account returns the owner's token account for mintID, opening an empty one
// on first use.
func (s *Service) Account(tx *gorm.DB, mintID uuid.UUID, owner string) (*domain.TokenAccount, error) {
	var acct domain.TokenAccount
	err := tx.Where("mint_id = ? AND owner = ?", mintID, owner).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.GetMint(tx, mintID); err != nil {
		return nil, err
	}
	acct = domain.TokenAccount{MintID: mintID, Owner: owner}
	if err := tx.Create(&acct).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, domain.ErrWriteConflict
		}
		return nil, err
	}
	return &acct, nil
}

func (s *Service) Balance(tx *gorm.DB, mintID uuid.UUID, owner string) (uint64, error) {
	var acct domain.TokenAccount
	err := tx.Where("mint_id = ? AND owner = ?", mintID, owner).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// MintTo creates amount new units in owner's account. authority must be the
// mint's current mint authority.
func (s *Service) MintTo(tx *gorm.DB, mintID uuid.UUID, owner string, amount uint64, authority string) error {
	if amount == 0 {
		return nil
	}
	mint, err := s.GetMint(tx, mintID)
	if err != nil {
		return err
	}
	if authority == "" || mint.MintAuthority != authority {
		return domain.ErrMintAuthorityMismatch
	}
	supply, err := checked.Add(mint.Supply, amount)
	if err != nil {
		return err
	}
	if mint.SupplyCap > 0 && supply > mint.SupplyCap {
		return domain.ErrSupplyCapExceeded
	}
	acct, err := s.Account(tx, mintID, owner)
	if err != nil {
		return err
	}
	balance, err := checked.Add(acct.Balance, amount)
	if err != nil {
		return err
	}
	if err := database.UpdateVersioned(tx, &domain.Mint{}, "mint_id", mint.MintID, mint.Version, map[string]interface{}{"supply": supply}); err != nil {
		return err
	}
	return database.UpdateVersioned(tx, &domain.TokenAccount{}, "account_id", acct.AccountID, acct.Version, map[string]interface{}{"balance": balance})
}

// Burn destroys amount units held by owner.
func (s *Service) Burn(tx *gorm.DB, mintID uuid.UUID, owner string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	mint, err := s.GetMint(tx, mintID)
	if err != nil {
		return err
	}
	acct, err := s.Account(tx, mintID, owner)
	if err != nil {
		return err
	}
	if acct.Balance < amount {
		return domain.ErrInsufficientFunds
	}
	balance, err := checked.Sub(acct.Balance, amount)
	if err != nil {
		return err
	}
	supply, err := checked.Sub(mint.Supply, amount)
	if err != nil {
		return err
	}
	if err := database.UpdateVersioned(tx, &domain.TokenAccount{}, "account_id", acct.AccountID, acct.Version, map[string]interface{}{"balance": balance}); err != nil {
		return err
	}
	return database.UpdateVersioned(tx, &domain.Mint{}, "mint_id", mint.MintID, mint.Version, map[string]interface{}{"supply": supply})
}

// Transfer moves amount units from one owner to another. authority must own the
// source account.
func (s *Service) Transfer(tx *gorm.DB, mintID uuid.UUID, from, to string, amount uint64, authority string) error {
	if amount == 0 {
		return nil
	}
	if authority == "" || authority != from {
		return domain.ErrOwnerMismatch
	}
	if from == to {
		return nil
	}
	src, err := s.Account(tx, mintID, from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return domain.ErrInsufficientFunds
	}
	dst, err := s.Account(tx, mintID, to)
	if err != nil {
		return err
	}
	srcBalance, err := checked.Sub(src.Balance, amount)
	if err != nil {
		return err
	}
	dstBalance, err := checked.Add(dst.Balance, amount)
	if err != nil {
		return err
	}
	if err := database.UpdateVersioned(tx, &domain.TokenAccount{}, "account_id", src.AccountID, src.Version, map[string]interface{}{"balance": srcBalance}); err != nil {
		return err
	}
	return database.UpdateVersioned(tx, &domain.TokenAccount{}, "account_id", dst.AccountID, dst.Version, map[string]interface{}{"balance": dstBalance})
}

// SetMintAuthority hands minting rights from current to next. The old authority
// cannot take them back.
func (s *Service) SetMintAuthority(tx *gorm.DB, mintID uuid.UUID, current, next string) error {
	mint, err := s.GetMint(tx, mintID)
	if err != nil {
		return err
	}
	if current == "" || mint.MintAuthority != current || next == "" {
		return domain.ErrMintAuthorityMismatch
	}
	return database.UpdateVersioned(tx, &domain.Mint{}, "mint_id", mint.MintID, mint.Version, map[string]interface{}{"mint_authority": next})
}
