package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slabworks/visualizer/internal/domain"
)

type AssignmentRepo struct{ db *gorm.DB }

func NewAssignmentRepo(db *gorm.DB) *AssignmentRepo { return &AssignmentRepo{db: db} }

func (r *AssignmentRepo) SaveAssignment(ctx context.Context, a *domain.NotificationAssignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AssignmentRepo) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.NotificationAssignment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TargetsByLine joins assignments to profiles and flattens each row to its
// send addresses, so callers never walk a relation graph.
func (r *AssignmentRepo) TargetsByLine(ctx context.Context, lineID uuid.UUID) ([]domain.NotificationTarget, error) {
	var out []domain.NotificationTarget
	err := r.db.WithContext(ctx).
		Table("notification_assignments AS a").
		Select("a.profile_id, p.full_name AS name, p.email, p.phone, a.sms_enabled, a.email_enabled").
		Joins("JOIN profiles p ON p.id = a.profile_id").
		Where("a.material_line_id = ?", lineID).
		Order("p.email asc").
		Scan(&out).Error
	return out, err
}
