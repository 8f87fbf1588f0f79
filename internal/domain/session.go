package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhoneVerificationTTL bounds how long a verified phone is trusted without
// re-verification.
const PhoneVerificationTTL = 30 * 24 * time.Hour

// VisitorSession captures first-touch attribution, the AB bucket and the
// verified-phone token for one browsing session. Attribution fields are
// first-touch: once set they are never overwritten.
type VisitorSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ABVariant string    `gorm:"size:20"`

	Phone           string     `gorm:"size:50;index"`
	PhoneVerifiedAt *time.Time

	UTMSource   string `gorm:"size:140"`
	UTMMedium   string `gorm:"size:140"`
	UTMCampaign string `gorm:"size:140"`
	UTMTerm     string `gorm:"size:140"`
	UTMContent  string `gorm:"size:140"`
	Referrer    string `gorm:"size:512"`
	LandingPage string `gorm:"size:512"`

	MaterialLineID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhoneVerified reports whether the session carries a phone verified within
// the trust window.
func (s *VisitorSession) PhoneVerified(now time.Time) bool {
	if s.Phone == "" || s.PhoneVerifiedAt == nil {
		return false
	}
	return now.Sub(*s.PhoneVerifiedAt) <= PhoneVerificationTTL
}
