package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:180;not null"`
	Slug      string    `gorm:"uniqueIndex;size:140;not null"`
	Lines     []MaterialLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaterialLine is one branded storefront inside an organization. Its slug is
// the subdomain key; the storage folder for every asset under the line is
// derived from org slug + line slug.
type MaterialLine struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null"`
	Name           string    `gorm:"size:180;not null"`
	DisplayTitle   string    `gorm:"size:180"`
	Slug           string    `gorm:"uniqueIndex;size:140;not null"`
	CustomDomain   string    `gorm:"size:255;index"`
	DomainVerified bool      `gorm:"default:false"`
	LogoURL        string    `gorm:"size:512"`

	PrimaryColor    string `gorm:"size:20"`
	AccentColor     string `gorm:"size:20"`
	BackgroundColor string `gorm:"size:20"`

	StorageFolder string `gorm:"size:300"`

	EmailFromName    string `gorm:"size:140"`
	EmailFromAddress string `gorm:"size:140"`

	Materials     []Material
	KitchenImages []KitchenImage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoragePrefix returns the object-storage folder for the line,
// "{orgSlug}/{lineSlug}". Kitchen stock images live under a "kitchens/"
// subfolder of it.
func (l *MaterialLine) StoragePrefix(orgSlug string) string {
	if l.StorageFolder != "" {
		return strings.TrimSuffix(l.StorageFolder, "/")
	}
	return orgSlug + "/" + l.Slug
}

// Subdomain returns the public host for the line under the app domain,
// or the verified custom domain when one is configured.
func (l *MaterialLine) Subdomain(appDomain string) string {
	if l.CustomDomain != "" && l.DomainVerified {
		return l.CustomDomain
	}
	return l.Slug + "." + appDomain
}

// ThemeVars maps the line's branding colors to the CSS variable table the
// storefront injects. Computed once per request instead of mutating the DOM.
func (l *MaterialLine) ThemeVars() map[string]string {
	vars := map[string]string{
		"--brand-primary":    "#0f172a",
		"--brand-accent":     "#d97706",
		"--brand-background": "#ffffff",
	}
	if c := normalizeHex(l.PrimaryColor); c != "" {
		vars["--brand-primary"] = c
	}
	if c := normalizeHex(l.AccentColor); c != "" {
		vars["--brand-accent"] = c
	}
	if c := normalizeHex(l.BackgroundColor); c != "" {
		vars["--brand-background"] = c
	}
	return vars
}

func normalizeHex(s string) string {
	v := strings.TrimSpace(strings.ToLower(s))
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "#") {
		v = "#" + v
	}
	if len(v) != 4 && len(v) != 7 {
		return ""
	}
	for _, r := range v[1:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}
	return v
}
