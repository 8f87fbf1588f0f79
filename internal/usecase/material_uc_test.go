package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabworks/visualizer/internal/adapters/repo/memory"
	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/usecase"
)

func newMaterialFixture(t *testing.T) (*usecase.MaterialUC, *memory.Store, *memory.FileStorage, *domain.MaterialLine) {
	t.Helper()
	store := memory.NewStore()
	fs := memory.NewFileStorage()
	ctx := context.Background()
	org := &domain.Organization{Name: "Stone Co", Slug: "stone-co"}
	require.NoError(t, store.SaveOrganization(ctx, org))
	line := &domain.MaterialLine{OrganizationID: org.ID, Name: "Premium", Slug: "premium"}
	require.NoError(t, store.SaveLine(ctx, line))
	return &usecase.MaterialUC{Materials: store, Orgs: store, Storage: fs}, store, fs, line
}

func upload(name string) usecase.MaterialUpload {
	return usecase.MaterialUpload{
		Filename:     name,
		MaterialType: domain.MaterialGranite,
		DataURL:      "data:image/jpeg;base64,aGVsbG8=",
	}
}

func TestBulkUpload_AccumulatesPerFileErrors(t *testing.T) {
	uc, store, fs, line := newMaterialFixture(t)
	ctx := context.Background()

	files := []usecase.MaterialUpload{
		upload("blue pearl.jpg"),
		{Filename: "broken.jpg"}, // no data
		upload("taj-mahal.jpg"),
	}
	saved, errs := uc.BulkUpload(ctx, line.ID, files)

	require.Len(t, saved, 2)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "broken.jpg")

	assert.Equal(t, "blue_pearl.jpg", saved[0].Filename, "spaces sanitized")
	assert.Equal(t, 0, saved[0].DisplayOrder)
	assert.Equal(t, 1, saved[1].DisplayOrder)

	_, ok := fs.Object("stone-co/premium/blue_pearl.jpg")
	assert.True(t, ok)

	mats, err := store.ListMaterialsByLine(ctx, line.ID)
	require.NoError(t, err)
	assert.Len(t, mats, 2)
}

func TestDeleteAll_IsTenantScoped(t *testing.T) {
	uc, store, _, line := newMaterialFixture(t)
	ctx := context.Background()

	other := &domain.MaterialLine{OrganizationID: line.OrganizationID, Name: "Budget", Slug: "budget"}
	require.NoError(t, store.SaveLine(ctx, other))
	_, errs := uc.BulkUpload(ctx, line.ID, []usecase.MaterialUpload{upload("a.jpg"), upload("b.jpg")})
	require.Empty(t, errs)
	_, errs = uc.BulkUpload(ctx, other.ID, []usecase.MaterialUpload{upload("c.jpg")})
	require.Empty(t, errs)

	n, errs := uc.DeleteAll(ctx, line.ID)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, errs)

	mine, err := store.ListMaterialsByLine(ctx, line.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
	theirs, err := store.ListMaterialsByLine(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1, "other line untouched")
}

func TestDelete_RemovesRowAndBlob(t *testing.T) {
	uc, store, fs, line := newMaterialFixture(t)
	ctx := context.Background()

	saved, errs := uc.BulkUpload(ctx, line.ID, []usecase.MaterialUpload{upload("a.jpg")})
	require.Empty(t, errs)
	require.NoError(t, uc.Delete(ctx, saved[0].ID))

	_, err := store.FindMaterial(ctx, saved[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, ok := fs.Object("stone-co/premium/a.jpg")
	assert.False(t, ok)
}

func TestUpdate_PartialFields(t *testing.T) {
	uc, _, _, line := newMaterialFixture(t)
	ctx := context.Background()
	saved, _ := uc.BulkUpload(ctx, line.ID, []usecase.MaterialUpload{upload("a.jpg")})
	require.Len(t, saved, 1)

	order := 7
	m, err := uc.Update(ctx, saved[0].ID, usecase.MaterialUpdate{Title: "Alaska White", DisplayOrder: &order})
	require.NoError(t, err)
	assert.Equal(t, "Alaska White", m.Title)
	assert.Equal(t, 7, m.DisplayOrder)
	assert.Equal(t, domain.MaterialGranite, m.MaterialType, "type untouched")
}

func TestAddKitchenImage_EnforcesCap(t *testing.T) {
	uc, _, fs, line := newMaterialFixture(t)
	ctx := context.Background()

	for i := 0; i < domain.MaxKitchenImages; i++ {
		_, err := uc.AddKitchenImage(ctx, line.ID, upload("kitchen.jpg"))
		require.NoError(t, err)
	}
	_, err := uc.AddKitchenImage(ctx, line.ID, upload("one-too-many.jpg"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, ok := fs.Object("stone-co/premium/kitchens/kitchen.jpg")
	assert.True(t, ok, "kitchen images live under kitchens/")
}

func TestDeleteKitchenImage(t *testing.T) {
	uc, store, fs, line := newMaterialFixture(t)
	ctx := context.Background()

	k, err := uc.AddKitchenImage(ctx, line.ID, upload("loft.jpg"))
	require.NoError(t, err)
	require.NoError(t, uc.DeleteKitchenImage(ctx, line.ID, k.ID))

	n, err := store.CountKitchenImages(ctx, line.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok := fs.Object("stone-co/premium/kitchens/loft.jpg")
	assert.False(t, ok)
}
