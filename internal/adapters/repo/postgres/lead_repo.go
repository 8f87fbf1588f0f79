package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slabworks/visualizer/internal/domain"
)

type LeadRepo struct{ db *gorm.DB }

func NewLeadRepo(db *gorm.DB) *LeadRepo { return &LeadRepo{db: db} }

func (r *LeadRepo) SaveLead(ctx context.Context, l *domain.Lead) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Email != "" {
		l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LeadRepo) FindLead(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var l domain.Lead
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepo) ListLeadsByLine(ctx context.Context, lineID uuid.UUID, f domain.LeadFilter) ([]domain.Lead, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Lead{}).Where("material_line_id = ?", lineID)
	if f.Query != "" {
		like := "%" + strings.TrimSpace(f.Query) + "%"
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR phone LIKE ?", like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 25
	}
	var list []domain.Lead
	offset := (f.Page - 1) * f.PageSize
	if err := q.Order("created_at desc").Offset(offset).Limit(f.PageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
