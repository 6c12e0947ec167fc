package model

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is a portal member that can receive notifications.
type Profile struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

// Notification is a user-facing message shown in the portal inbox.
type Notification struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string         `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Type      string         `json:"type"`
	Metadata  datatypes.JSON `json:"metadata"`
	Read      bool           `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

const NotificationContractSigned = "contract_signed"
