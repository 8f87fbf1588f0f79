package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/slabworks/visualizer/internal/domain"
)

// LineUC owns organization and material-line lifecycle: creation with unique
// slugs, branding, custom domains and the per-tenant theme table.
type LineUC struct {
	Orgs domain.OrgRepo

	// AppDomain is the apex the line subdomains hang off (PUBLIC_APP_DOMAIN).
	AppDomain string
}

type CreateLineInput struct {
	Name         string `json:"name" validate:"required,max=180"`
	DisplayTitle string `json:"displayTitle" validate:"omitempty,max=180"`
}

type BrandingInput struct {
	DisplayTitle    string `json:"displayTitle" validate:"omitempty,max=180"`
	LogoURL         string `json:"logoUrl" validate:"omitempty,url"`
	PrimaryColor    string `json:"primaryColor" validate:"omitempty,max=20"`
	AccentColor     string `json:"accentColor" validate:"omitempty,max=20"`
	BackgroundColor string `json:"backgroundColor" validate:"omitempty,max=20"`

	EmailFromName    string `json:"emailFromName" validate:"omitempty,max=140"`
	EmailFromAddress string `json:"emailFromAddress" validate:"omitempty,email"`
}

func (uc *LineUC) CreateOrganization(ctx context.Context, name string) (*domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name required", domain.ErrInvalidInput)
	}
	org := &domain.Organization{ID: uuid.New(), Name: name, Slug: slug.Make(name)}
	if err := uc.Orgs.SaveOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// CreateLine derives a unique slug (suffixing "-2", "-3", ... on collision)
// and pins the storage folder to "{orgSlug}/{lineSlug}" at creation time, so
// later renames never move blobs.
func (uc *LineUC) CreateLine(ctx context.Context, orgID uuid.UUID, in CreateLineInput) (*domain.MaterialLine, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	org, err := uc.Orgs.FindOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	base := slug.Make(in.Name)
	lineSlug := base
	if n, err := uc.Orgs.CountLineSlugs(ctx, base); err == nil && n > 0 {
		lineSlug = fmt.Sprintf("%s-%d", base, n+1)
	}
	line := &domain.MaterialLine{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Name:           strings.TrimSpace(in.Name),
		DisplayTitle:   in.DisplayTitle,
		Slug:           lineSlug,
		StorageFolder:  org.Slug + "/" + lineSlug,
	}
	if err := uc.Orgs.SaveLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

func (uc *LineUC) UpdateBranding(ctx context.Context, lineID uuid.UUID, in BrandingInput) (*domain.MaterialLine, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	line, err := uc.Orgs.FindLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if in.DisplayTitle != "" {
		line.DisplayTitle = in.DisplayTitle
	}
	if in.LogoURL != "" {
		line.LogoURL = in.LogoURL
	}
	if in.PrimaryColor != "" {
		line.PrimaryColor = in.PrimaryColor
	}
	if in.AccentColor != "" {
		line.AccentColor = in.AccentColor
	}
	if in.BackgroundColor != "" {
		line.BackgroundColor = in.BackgroundColor
	}
	if in.EmailFromName != "" {
		line.EmailFromName = in.EmailFromName
	}
	if in.EmailFromAddress != "" {
		line.EmailFromAddress = in.EmailFromAddress
	}
	if err := uc.Orgs.SaveLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// SetCustomDomain registers a domain unverified; verification is a separate
// admin action after DNS is pointed.
func (uc *LineUC) SetCustomDomain(ctx context.Context, lineID uuid.UUID, customDomain string) (*domain.MaterialLine, error) {
	d := strings.ToLower(strings.TrimSpace(customDomain))
	line, err := uc.Orgs.FindLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	line.CustomDomain = d
	line.DomainVerified = false
	if err := uc.Orgs.SaveLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

func (uc *LineUC) VerifyDomain(ctx context.Context, lineID uuid.UUID) (*domain.MaterialLine, error) {
	line, err := uc.Orgs.FindLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.CustomDomain == "" {
		return nil, fmt.Errorf("%w: no custom domain configured", domain.ErrInvalidInput)
	}
	line.DomainVerified = true
	if err := uc.Orgs.SaveLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// ResolveHost maps an incoming Host header to a line: verified custom domain
// first, then "{slug}.{AppDomain}".
func (uc *LineUC) ResolveHost(ctx context.Context, host string) (*domain.MaterialLine, error) {
	h := strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	if line, err := uc.Orgs.FindLineByDomain(ctx, h); err == nil {
		return line, nil
	}
	if uc.AppDomain != "" && strings.HasSuffix(h, "."+uc.AppDomain) {
		return uc.Orgs.FindLineBySlug(ctx, strings.TrimSuffix(h, "."+uc.AppDomain))
	}
	return nil, domain.ErrNotFound
}

// Theme returns the CSS variable table for the line's branding.
func (uc *LineUC) Theme(line *domain.MaterialLine) map[string]string {
	return line.ThemeVars()
}
