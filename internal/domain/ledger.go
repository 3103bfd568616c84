package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger is the platform-wide singleton for one namespace. It tracks issued and
// retired credit totals and owns the capability that signs for project vaults.
type Ledger struct {
	LedgerID           uuid.UUID `gorm:"column:ledger_id;type:uuid;primaryKey" json:"ledger_id"`
	Namespace          string    `gorm:"column:namespace;not null;uniqueIndex" json:"namespace"`
	AdminIdentity      string    `gorm:"column:admin_identity;not null" json:"admin_identity"`
	PaymentAssetID     uuid.UUID `gorm:"column:payment_asset_id;type:uuid;not null" json:"payment_asset_id"`
	FeeVaultID         uuid.UUID `gorm:"column:fee_vault_id;type:uuid;not null" json:"fee_vault_id"`
	TotalCreditsIssued uint64    `gorm:"column:total_credits_issued;not null;default:0" json:"total_credits_issued"`
	TotalCreditsOffset uint64    `gorm:"column:total_credits_offset;not null;default:0" json:"total_credits_offset"`
	CapabilityAddress  string    `gorm:"column:capability_address;not null" json:"capability_address"`
	Version            int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt          time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Ledger) TableName() string {
	return "Ledgers"
}

func (l *Ledger) BeforeCreate(tx *gorm.DB) error {
	if l.LedgerID == uuid.Nil {
		l.LedgerID = uuid.New()
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return nil
}
