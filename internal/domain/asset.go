package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssetKind distinguishes what a mint represents.
type AssetKind string

const (
	AssetFungible AssetKind = "fungible"
	AssetReceipt  AssetKind = "receipt"
	AssetPayment  AssetKind = "payment"
)

// PaymentAssetDecimals is the precision required for the payment currency.
const PaymentAssetDecimals = 6

// Mint is an asset descriptor held by the asset transfer service.
// SupplyCap of zero means uncapped.
type Mint struct {
	MintID        uuid.UUID      `gorm:"column:mint_id;type:uuid;primaryKey" json:"mint_id"`
	Kind          AssetKind      `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Decimals      uint8          `gorm:"column:decimals;not null" json:"decimals"`
	MintAuthority string         `gorm:"column:mint_authority;not null" json:"mint_authority"`
	Supply        uint64         `gorm:"column:supply;not null;default:0" json:"supply"`
	SupplyCap     uint64         `gorm:"column:supply_cap;not null;default:0" json:"supply_cap"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Version       int64          `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt     time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Mint) TableName() string {
	return "Mints"
}

func (m *Mint) BeforeCreate(tx *gorm.DB) error {
	if m.MintID == uuid.Nil {
		m.MintID = uuid.New()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}

// TokenAccount holds one owner's balance of one mint.
type TokenAccount struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	MintID    uuid.UUID `gorm:"column:mint_id;type:uuid;not null;uniqueIndex:idx_token_account_owner" json:"mint_id"`
	Owner     string    `gorm:"column:owner;not null;uniqueIndex:idx_token_account_owner" json:"owner"`
	Balance   uint64    `gorm:"column:balance;not null;default:0" json:"balance"`
	Version   int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (TokenAccount) TableName() string {
	return "TokenAccounts"
}

func (a *TokenAccount) BeforeCreate(tx *gorm.DB) error {
	if a.AccountID == uuid.Nil {
		a.AccountID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

// AssetMetadata is the descriptive document attached to receipt and project mints.
type AssetMetadata struct {
	Name                 string            `json:"name"`
	Symbol               string            `json:"symbol"`
	URI                  string            `json:"uri"`
	SellerFeeBasisPoints uint16            `json:"seller_fee_basis_points"`
	Creator              string            `json:"creator,omitempty"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}
