package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxFeeRateBps is 100% expressed in basis points.
const MaxFeeRateBps = 10000

// Project is a registered pool of fungible credit units. Its vault is owned by the
// ledger capability, never by the project owner.
type Project struct {
	ProjectID         uuid.UUID `gorm:"column:project_id;type:uuid;primaryKey" json:"project_id"`
	OwnerIdentity     string    `gorm:"column:owner_identity;not null;uniqueIndex:idx_project_owner_asset" json:"owner_identity"`
	UnderlyingAssetID uuid.UUID `gorm:"column:underlying_asset_id;type:uuid;not null;uniqueIndex:idx_project_owner_asset" json:"underlying_asset_id"`
	ProvenanceAssetID uuid.UUID `gorm:"column:provenance_asset_id;type:uuid;not null" json:"provenance_asset_id"`
	VaultAccountID    uuid.UUID `gorm:"column:vault_account_id;type:uuid;not null" json:"vault_account_id"`
	IsActive          bool      `gorm:"column:is_active;not null" json:"is_active"`
	TotalSupply       uint64    `gorm:"column:total_supply;not null" json:"total_supply"`
	RemainingSupply   uint64    `gorm:"column:remaining_supply;not null" json:"remaining_supply"`
	PricePerUnit      uint64    `gorm:"column:price_per_unit;not null" json:"price_per_unit"`
	FeeRateBps        uint16    `gorm:"column:fee_rate_bps;not null" json:"fee_rate_bps"`
	IssuingAuthority  string    `gorm:"column:issuing_authority;not null" json:"issuing_authority"`
	ReceiptName       string    `gorm:"column:receipt_name;type:varchar(32);not null" json:"receipt_name"`
	ReceiptSymbol     string    `gorm:"column:receipt_symbol;type:varchar(10);not null" json:"receipt_symbol"`
	ReceiptURI        string    `gorm:"column:receipt_uri;type:varchar(200);not null" json:"receipt_uri"`
	Version           int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt         time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Project) TableName() string {
	return "Projects"
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ProjectID == uuid.Nil {
		p.ProjectID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// ReceiptDescriptor is the human-readable metadata reference for receipts.
// The core stores it and never interprets the content behind URI.
type ReceiptDescriptor struct {
	URI    string `json:"uri"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Receipt descriptor limits, matching the token metadata program.
const (
	MaxReceiptNameLen   = 32
	MaxReceiptSymbolLen = 10
	MaxReceiptURILen    = 200
)
