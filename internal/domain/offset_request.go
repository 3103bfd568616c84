package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the review state of an offset request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// MaxRequestIDLen caps caller-chosen request identifiers.
const MaxRequestIDLen = 64

// IsTerminal reports whether no further review transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// OffsetRequest records one retirement against a purchase. The balance and receipt
// effects are applied when the request is created; Status only tracks review.
type OffsetRequest struct {
	OffsetRequestID   uuid.UUID     `gorm:"column:offset_request_id;type:uuid;primaryKey" json:"offset_request_id"`
	RequesterIdentity string        `gorm:"column:requester_identity;not null;uniqueIndex:idx_offset_request_key" json:"requester_identity"`
	PurchaseID        uuid.UUID     `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:idx_offset_request_key;index" json:"purchase_id"`
	RequestID         string        `gorm:"column:request_id;type:varchar(64);not null;uniqueIndex:idx_offset_request_key" json:"request_id"`
	ProjectID         uuid.UUID     `gorm:"column:project_id;type:uuid;not null" json:"project_id"`
	Amount            uint64        `gorm:"column:amount;not null" json:"amount"`
	Status            RequestStatus `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	BurnedReceiptID   uuid.UUID     `gorm:"column:burned_receipt_id;type:uuid;not null" json:"burned_receipt_id"`
	NewReceiptID      *uuid.UUID    `gorm:"column:new_receipt_id;type:uuid" json:"new_receipt_id"`
	RequestedAt       time.Time     `gorm:"column:requested_at;not null" json:"requested_at"`
	ProcessedAt       *time.Time    `gorm:"column:processed_at" json:"processed_at"`
	ProcessorIdentity *string       `gorm:"column:processor_identity" json:"processor_identity"`
	Version           int64         `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt         time.Time     `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time     `gorm:"column:updatedAt" json:"updatedAt"`
}

func (OffsetRequest) TableName() string {
	return "OffsetRequests"
}

func (o *OffsetRequest) BeforeCreate(tx *gorm.DB) error {
	if o.OffsetRequestID == uuid.Nil {
		o.OffsetRequestID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}
