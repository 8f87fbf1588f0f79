package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slabworks/visualizer/internal/domain"
)

type SessionRepo struct{ db *gorm.DB }

func NewSessionRepo(db *gorm.DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) SaveSession(ctx context.Context, s *domain.VisitorSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SessionRepo) FindSession(ctx context.Context, id uuid.UUID) (*domain.VisitorSession, error) {
	var s domain.VisitorSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) FindSessionByPhone(ctx context.Context, phone string) (*domain.VisitorSession, error) {
	p := strings.TrimSpace(phone)
	if p == "" {
		return nil, domain.ErrInvalidInput
	}
	var s domain.VisitorSession
	if err := r.db.WithContext(ctx).
		Where("phone = ?", p).Order("created_at desc").First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
