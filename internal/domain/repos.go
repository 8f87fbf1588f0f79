package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

type OrgRepo interface {
	SaveOrganization(ctx context.Context, o *Organization) error
	FindOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	FindOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	SaveLine(ctx context.Context, l *MaterialLine) error
	FindLine(ctx context.Context, id uuid.UUID) (*MaterialLine, error)
	FindLineBySlug(ctx context.Context, slug string) (*MaterialLine, error)
	FindLineByDomain(ctx context.Context, host string) (*MaterialLine, error)
	ListLines(ctx context.Context, orgID uuid.UUID) ([]MaterialLine, error)
	CountLineSlugs(ctx context.Context, slug string) (int64, error)
}

type MaterialRepo interface {
	SaveMaterial(ctx context.Context, m *Material) error
	FindMaterial(ctx context.Context, id uuid.UUID) (*Material, error)
	ListMaterialsByLine(ctx context.Context, lineID uuid.UUID) ([]Material, error)
	DeleteMaterial(ctx context.Context, id uuid.UUID) error
	DeleteMaterialsByLine(ctx context.Context, lineID uuid.UUID) (int64, error)

	SaveKitchenImage(ctx context.Context, k *KitchenImage) error
	ListKitchenImages(ctx context.Context, lineID uuid.UUID) ([]KitchenImage, error)
	CountKitchenImages(ctx context.Context, lineID uuid.UUID) (int64, error)
	DeleteKitchenImage(ctx context.Context, id uuid.UUID) error
}

type LeadRepo interface {
	SaveLead(ctx context.Context, l *Lead) error
	FindLead(ctx context.Context, id uuid.UUID) (*Lead, error)
	ListLeadsByLine(ctx context.Context, lineID uuid.UUID, f LeadFilter) ([]Lead, int64, error)
}

type SessionRepo interface {
	SaveSession(ctx context.Context, s *VisitorSession) error
	FindSession(ctx context.Context, id uuid.UUID) (*VisitorSession, error)
	// FindSessionByPhone returns the most recent session carrying the phone.
	FindSessionByPhone(ctx context.Context, phone string) (*VisitorSession, error)
}

type AssignmentRepo interface {
	SaveAssignment(ctx context.Context, a *NotificationAssignment) error
	DeleteAssignment(ctx context.Context, id uuid.UUID) error
	// TargetsByLine resolves every assignment for the line to concrete
	// send addresses.
	TargetsByLine(ctx context.Context, lineID uuid.UUID) ([]NotificationTarget, error)
}

// StorageObject is one listed object in the tenant bucket.
type StorageObject struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

type FileStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]StorageObject, error)
	PublicURL(path string) string
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
	SendMMS(ctx context.Context, to, body, mediaURL string) error
}

type PhoneVerifier interface {
	StartVerification(ctx context.Context, phone string) error
	CheckVerification(ctx context.Context, phone, code string) (bool, error)
}

type EmailMessage struct {
	FromName string
	From     string
	To       []string
	Subject  string
	HTML     string
	Text     string
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type CRMContact struct {
	Name      string
	Email     string
	Phone     string
	Address   string
	Source    string
	ABVariant string
	Tags      []string
}

type ContactCRM interface {
	UpsertContact(ctx context.Context, c CRMContact) error
}

type AnalyticsEvent struct {
	Name       string
	DistinctID string
	Timestamp  time.Time
	Properties map[string]any
}

// EventQuery parameterizes a funnel count: event name, tenant, trailing day
// window and optional UTM filters.
type EventQuery struct {
	Event          string
	MaterialLineID string
	Days           int
	UTMSource      string
	UTMCampaign    string
}

type AnalyticsSink interface {
	Capture(ctx context.Context, e AnalyticsEvent) error
}

type AnalyticsSource interface {
	EventCount(ctx context.Context, q EventQuery) (int64, error)
	EventMetadata(ctx context.Context, q EventQuery, limit int) ([]map[string]any, error)
}
