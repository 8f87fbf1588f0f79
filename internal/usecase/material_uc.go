package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/imaging"
)

var validate = validator.New()

// MaterialUC manages a line's slab inventory and kitchen stock photos.
// Storage and DB rows share the "{orgSlug}/{lineSlug}/{filename}" convention.
type MaterialUC struct {
	Materials domain.MaterialRepo
	Orgs      domain.OrgRepo
	Storage   domain.FileStorage
}

type MaterialUpload struct {
	Filename     string              `json:"filename" validate:"required"`
	Title        string              `json:"title"`
	MaterialType domain.MaterialType `json:"materialType"`
	DataURL      string              `json:"dataUrl" validate:"required"`
}

type MaterialUpdate struct {
	Title        string              `json:"title" validate:"omitempty,max=180"`
	MaterialType domain.MaterialType `json:"materialType"`
	DisplayOrder *int                `json:"displayOrder"`
}

// BulkUpload stores each file and creates its row. Per-file failures are
// accumulated, never fail-fast: the dashboard shows every error together.
func (uc *MaterialUC) BulkUpload(ctx context.Context, lineID uuid.UUID, files []MaterialUpload) ([]domain.Material, []string) {
	line, prefix, err := uc.resolveLine(ctx, lineID)
	if err != nil {
		return nil, []string{err.Error()}
	}
	var (
		saved []domain.Material
		errs  []string
	)
	order := nextDisplayOrder(ctx, uc.Materials, lineID)
	for _, f := range files {
		if err := validate.Struct(f); err != nil {
			errs = append(errs, fmt.Sprintf("%s: missing filename or data", f.Filename))
			continue
		}
		filename := sanitizeFilename(f.Filename)
		compressed := imaging.Compress(f.DataURL, imaging.MaxUploadWidth, imaging.DefaultQuality)
		mime, data, err := imaging.ParseDataURL(compressed)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f.Filename, err))
			continue
		}
		if _, err := uc.Storage.Upload(ctx, prefix+"/"+filename, mime, data); err != nil {
			errs = append(errs, fmt.Sprintf("%s: upload failed: %v", f.Filename, err))
			continue
		}
		mtype := f.MaterialType
		if mtype == "" {
			mtype = domain.MaterialOther
		}
		m := domain.Material{
			ID:             uuid.New(),
			MaterialLineID: line.ID,
			Filename:       filename,
			Title:          f.Title,
			MaterialType:   mtype,
			DisplayOrder:   order,
		}
		if err := uc.Materials.SaveMaterial(ctx, &m); err != nil {
			errs = append(errs, fmt.Sprintf("%s: save failed: %v", f.Filename, err))
			continue
		}
		order++
		saved = append(saved, m)
	}
	return saved, errs
}

func (uc *MaterialUC) List(ctx context.Context, lineID uuid.UUID) ([]domain.Material, error) {
	return uc.Materials.ListMaterialsByLine(ctx, lineID)
}

func (uc *MaterialUC) Update(ctx context.Context, id uuid.UUID, upd MaterialUpdate) (*domain.Material, error) {
	if err := validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	m, err := uc.Materials.FindMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != "" {
		m.Title = upd.Title
	}
	if upd.MaterialType != "" {
		m.MaterialType = upd.MaterialType
	}
	if upd.DisplayOrder != nil {
		m.DisplayOrder = *upd.DisplayOrder
	}
	if err := uc.Materials.SaveMaterial(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes the row first, then the blob best-effort.
func (uc *MaterialUC) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := uc.Materials.FindMaterial(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.Materials.DeleteMaterial(ctx, id); err != nil {
		return err
	}
	if _, prefix, err := uc.resolveLine(ctx, m.MaterialLineID); err == nil {
		if err := uc.Storage.Delete(ctx, prefix+"/"+m.Filename); err != nil {
			log.Warn().Err(err).Str("file", m.Filename).Msg("material blob delete failed")
		}
	}
	return nil
}

// DeleteAll clears one line's materials only; other tenants are untouched.
func (uc *MaterialUC) DeleteAll(ctx context.Context, lineID uuid.UUID) (int64, []string) {
	mats, err := uc.Materials.ListMaterialsByLine(ctx, lineID)
	if err != nil {
		return 0, []string{err.Error()}
	}
	n, err := uc.Materials.DeleteMaterialsByLine(ctx, lineID)
	if err != nil {
		return 0, []string{err.Error()}
	}
	var errs []string
	if _, prefix, err := uc.resolveLine(ctx, lineID); err == nil {
		for _, m := range mats {
			if err := uc.Storage.Delete(ctx, prefix+"/"+m.Filename); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", m.Filename, err))
			}
		}
	}
	return n, errs
}

// AddKitchenImage enforces the stock-photo cap per line.
func (uc *MaterialUC) AddKitchenImage(ctx context.Context, lineID uuid.UUID, up MaterialUpload) (*domain.KitchenImage, error) {
	if err := validate.Struct(up); err != nil {
		return nil, fmt.Errorf("%w: missing filename or data", domain.ErrInvalidInput)
	}
	count, err := uc.Materials.CountKitchenImages(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if count >= domain.MaxKitchenImages {
		return nil, fmt.Errorf("%w: kitchen image limit of %d reached", domain.ErrInvalidInput, domain.MaxKitchenImages)
	}
	line, prefix, err := uc.resolveLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	filename := sanitizeFilename(up.Filename)
	compressed := imaging.Compress(up.DataURL, imaging.MaxUploadWidth, imaging.DefaultQuality)
	mime, data, err := imaging.ParseDataURL(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if _, err := uc.Storage.Upload(ctx, prefix+"/kitchens/"+filename, mime, data); err != nil {
		return nil, fmt.Errorf("upload kitchen image: %w", err)
	}
	k := domain.KitchenImage{
		ID:             uuid.New(),
		MaterialLineID: line.ID,
		Filename:       filename,
		Title:          up.Title,
		DisplayOrder:   int(count),
	}
	if err := uc.Materials.SaveKitchenImage(ctx, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (uc *MaterialUC) DeleteKitchenImage(ctx context.Context, lineID, id uuid.UUID) error {
	imgs, err := uc.Materials.ListKitchenImages(ctx, lineID)
	if err != nil {
		return err
	}
	var filename string
	for _, k := range imgs {
		if k.ID == id {
			filename = k.Filename
		}
	}
	if filename == "" {
		return domain.ErrNotFound
	}
	if err := uc.Materials.DeleteKitchenImage(ctx, id); err != nil {
		return err
	}
	if _, prefix, err := uc.resolveLine(ctx, lineID); err == nil {
		if err := uc.Storage.Delete(ctx, prefix+"/kitchens/"+filename); err != nil {
			log.Warn().Err(err).Str("file", filename).Msg("kitchen blob delete failed")
		}
	}
	return nil
}

func (uc *MaterialUC) resolveLine(ctx context.Context, lineID uuid.UUID) (*domain.MaterialLine, string, error) {
	line, err := uc.Orgs.FindLine(ctx, lineID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve line: %w", err)
	}
	orgSlug := ""
	if org, err := uc.Orgs.FindOrganization(ctx, line.OrganizationID); err == nil {
		orgSlug = org.Slug
	}
	return line, line.StoragePrefix(orgSlug), nil
}

func nextDisplayOrder(ctx context.Context, repo domain.MaterialRepo, lineID uuid.UUID) int {
	mats, err := repo.ListMaterialsByLine(ctx, lineID)
	if err != nil || len(mats) == 0 {
		return 0
	}
	max := 0
	for _, m := range mats {
		if m.DisplayOrder > max {
			max = m.DisplayOrder
		}
	}
	return max + 1
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "-")
	return name
}
