package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slabworks/visualizer/internal/domain"
)

type OrgRepo struct{ db *gorm.DB }

func NewOrgRepo(db *gorm.DB) *OrgRepo { return &OrgRepo{db: db} }

func (r *OrgRepo) SaveOrganization(ctx context.Context, o *domain.Organization) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *OrgRepo) FindOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	var o domain.Organization
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrgRepo) FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var o domain.Organization
	s := strings.ToLower(strings.TrimSpace(slug))
	if s == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := r.db.WithContext(ctx).First(&o, "slug = ?", s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrgRepo) SaveLine(ctx context.Context, l *domain.MaterialLine) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *OrgRepo) FindLine(ctx context.Context, id uuid.UUID) (*domain.MaterialLine, error) {
	var l domain.MaterialLine
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *OrgRepo) FindLineBySlug(ctx context.Context, slug string) (*domain.MaterialLine, error) {
	var l domain.MaterialLine
	s := strings.ToLower(strings.TrimSpace(slug))
	if s == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := r.db.WithContext(ctx).First(&l, "slug = ?", s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *OrgRepo) FindLineByDomain(ctx context.Context, host string) (*domain.MaterialLine, error) {
	var l domain.MaterialLine
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := r.db.WithContext(ctx).
		First(&l, "LOWER(custom_domain) = ? AND domain_verified = true", h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *OrgRepo) ListLines(ctx context.Context, orgID uuid.UUID) ([]domain.MaterialLine, error) {
	var list []domain.MaterialLine
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).Order("name asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OrgRepo) CountLineSlugs(ctx context.Context, slug string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.MaterialLine{}).
		Where("slug = ? OR slug LIKE ?", slug, slug+"-%").Count(&n).Error
	return n, err
}
