package model

import (
	"time"
)

// ContractStatus is the position of a contract in the signing workflow.
type ContractStatus string

// ContractStatus constants
const (
	StatusDraft                 ContractStatus = "draft"
	StatusPendingAdminSignature ContractStatus = "pending_admin_signature"
	StatusCompleted             ContractStatus = "completed"
)

var statusRank = map[ContractStatus]int{
	StatusDraft:                 0,
	StatusPendingAdminSignature: 1,
	StatusCompleted:             2,
}

// Valid reports whether s is a known status.
func (s ContractStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next keeps the workflow monotonic.
// Staying in pending_admin_signature is allowed so an artist can re-sign.
func (s ContractStatus) CanAdvanceTo(next ContractStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if s == StatusPendingAdminSignature && next == StatusPendingAdminSignature {
		return true
	}
	return to == from+1
}

// Contract represents a performance contract awaiting signatures
type Contract struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title     string         `gorm:"not null" json:"title"`
	Content   string         `gorm:"type:text" json:"content"`
	Status    ContractStatus `gorm:"type:varchar(32);index;not null;default:draft" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }

// Body returns the contract text without the embedded signature block.
func (c *Contract) Body() string {
	return StripEmbeddedSignatures(c.Content)
}
