package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lead is written exactly once at submission time and never mutated.
// Line/org references are denormalized so the row stays readable even if
// the owning line is later reshaped.
type Lead struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SessionID *uuid.UUID `gorm:"type:uuid;index"`

	Name            string `gorm:"size:140;not null"`
	Email           string `gorm:"size:140;not null"`
	Address         string `gorm:"size:255;not null"`
	Phone           string `gorm:"size:50;index"`
	SMSNotifications bool  `gorm:"default:false"`

	SelectedSlabID   *uuid.UUID `gorm:"type:uuid"`
	SelectedSlabName string     `gorm:"size:180"`
	SelectedImageURL string     `gorm:"size:512"`
	OriginalImageURL string     `gorm:"size:512"`

	ABVariant string `gorm:"size:20"`

	MaterialLineID *uuid.UUID `gorm:"type:uuid;index"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index"`

	UTMSource   string `gorm:"size:140"`
	UTMMedium   string `gorm:"size:140"`
	UTMCampaign string `gorm:"size:140"`
	UTMTerm     string `gorm:"size:140"`
	UTMContent  string `gorm:"size:140"`
	Referrer    string `gorm:"size:512"`

	CreatedAt time.Time
}

// Profile is a dashboard user who can be assigned lead notifications.
type Profile struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email    string    `gorm:"size:140;uniqueIndex"`
	Phone    string    `gorm:"size:50"`
	FullName string    `gorm:"size:140"`
	Role     string    `gorm:"size:30;default:'member'"`
	CreatedAt time.Time
}

// NotificationAssignment routes new-lead notifications for one line to one
// profile, with SMS and email toggled independently.
type NotificationAssignment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	MaterialLineID uuid.UUID `gorm:"type:uuid;index;not null"`
	ProfileID      uuid.UUID `gorm:"type:uuid;index;not null"`
	SMSEnabled     bool      `gorm:"default:true"`
	EmailEnabled   bool      `gorm:"default:true"`
	CreatedAt      time.Time
}

// NotificationTarget is an assignment resolved to concrete send addresses.
// The repo layer always returns a flat list, never a nested relation shape.
type NotificationTarget struct {
	ProfileID    uuid.UUID
	Name         string
	Email        string
	Phone        string
	SMSEnabled   bool
	EmailEnabled bool
}

type LeadFilter struct {
	Page     int
	PageSize int
	Query    string
}
