package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase is a buyer's claim on a slice of a project's credits. Amount never
// changes; RemainingAmount and ReceiptAssetID move only through offsets.
type Purchase struct {
	PurchaseID      uuid.UUID `gorm:"column:purchase_id;type:uuid;primaryKey" json:"purchase_id"`
	BuyerIdentity   string    `gorm:"column:buyer_identity;not null;uniqueIndex:idx_purchase_key;index" json:"buyer_identity"`
	ProjectID       uuid.UUID `gorm:"column:project_id;type:uuid;not null;uniqueIndex:idx_purchase_key" json:"project_id"`
	ReceiptAssetID  uuid.UUID `gorm:"column:receipt_asset_id;type:uuid;not null;uniqueIndex:idx_purchase_key" json:"receipt_asset_id"`
	Amount          uint64    `gorm:"column:amount;not null" json:"amount"`
	RemainingAmount uint64    `gorm:"column:remaining_amount;not null" json:"remaining_amount"`
	TotalPaid       uint64    `gorm:"column:total_paid;not null" json:"total_paid"`
	FeePaid         uint64    `gorm:"column:fee_paid;not null" json:"fee_paid"`
	PurchasedAt     time.Time `gorm:"column:purchased_at;not null" json:"purchased_at"`
	Version         int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt       time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Purchase) TableName() string {
	return "Purchases"
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.PurchaseID == uuid.Nil {
		p.PurchaseID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// Retired returns how much of the purchase has been offset so far.
func (p *Purchase) Retired() uint64 {
	return p.Amount - p.RemainingAmount
}
