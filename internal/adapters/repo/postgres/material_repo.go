package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slabworks/visualizer/internal/domain"
)

type MaterialRepo struct{ db *gorm.DB }

func NewMaterialRepo(db *gorm.DB) *MaterialRepo { return &MaterialRepo{db: db} }

func (r *MaterialRepo) SaveMaterial(ctx context.Context, m *domain.Material) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MaterialRepo) FindMaterial(ctx context.Context, id uuid.UUID) (*domain.Material, error) {
	var m domain.Material
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MaterialRepo) ListMaterialsByLine(ctx context.Context, lineID uuid.UUID) ([]domain.Material, error) {
	var list []domain.Material
	if err := r.db.WithContext(ctx).
		Where("material_line_id = ?", lineID).
		Order("display_order asc, title asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *MaterialRepo) DeleteMaterial(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.Material{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MaterialRepo) DeleteMaterialsByLine(ctx context.Context, lineID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Material{}, "material_line_id = ?", lineID)
	return res.RowsAffected, res.Error
}

func (r *MaterialRepo) SaveKitchenImage(ctx context.Context, k *domain.KitchenImage) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(k).Error
}

func (r *MaterialRepo) ListKitchenImages(ctx context.Context, lineID uuid.UUID) ([]domain.KitchenImage, error) {
	var list []domain.KitchenImage
	if err := r.db.WithContext(ctx).
		Where("material_line_id = ?", lineID).
		Order("display_order asc, created_at asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *MaterialRepo) CountKitchenImages(ctx context.Context, lineID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.KitchenImage{}).
		Where("material_line_id = ?", lineID).Count(&n).Error
	return n, err
}

func (r *MaterialRepo) DeleteKitchenImage(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.KitchenImage{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
