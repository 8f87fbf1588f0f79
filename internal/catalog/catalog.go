// Package catalog resolves the slab options a tenant's storefront offers.
// The material rows and the tenant's storage folder are the sources of
// truth; when both are unavailable the built-in sample catalog keeps the
// visualizer usable.
package catalog

import (
	"context"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/slabworks/visualizer/internal/domain"
)

type Loader struct {
	Orgs      domain.OrgRepo
	Materials domain.MaterialRepo
	Storage   domain.FileStorage
}

// SlabOptions returns the selectable slabs for a line, in display order.
func (l *Loader) SlabOptions(ctx context.Context, line *domain.MaterialLine) []domain.SlabOption {
	prefix := l.linePrefix(ctx, line)

	mats, err := l.Materials.ListMaterialsByLine(ctx, line.ID)
	if err != nil {
		log.Warn().Err(err).Str("line", line.Slug).Msg("material list failed")
	}
	if len(mats) > 0 {
		opts := make([]domain.SlabOption, 0, len(mats))
		for _, m := range mats {
			title := m.Title
			if title == "" {
				title = TitleFromFilename(m.Filename)
			}
			opts = append(opts, domain.SlabOption{
				ID:          m.ID.String(),
				Name:        title,
				Description: string(m.MaterialType),
				ImageURL:    l.Storage.PublicURL(prefix + "/" + m.Filename),
			})
		}
		return opts
	}

	// No rows yet: fall back to whatever sits in the tenant folder.
	objs, err := l.Storage.List(ctx, prefix)
	if err != nil {
		log.Warn().Err(err).Str("prefix", prefix).Msg("storage listing failed")
	}
	var opts []domain.SlabOption
	for _, o := range objs {
		if !isImage(o.Name) || strings.HasPrefix(o.Name, "kitchens/") {
			continue
		}
		opts = append(opts, domain.SlabOption{
			ID:       o.Name,
			Name:     TitleFromFilename(o.Name),
			ImageURL: l.Storage.PublicURL(prefix + "/" + o.Name),
		})
	}
	if len(opts) > 0 {
		return opts
	}
	return Builtin()
}

// KitchenOptions returns the line's stock kitchen photos.
func (l *Loader) KitchenOptions(ctx context.Context, line *domain.MaterialLine) []domain.SlabOption {
	prefix := l.linePrefix(ctx, line)
	imgs, err := l.Materials.ListKitchenImages(ctx, line.ID)
	if err != nil {
		log.Warn().Err(err).Str("line", line.Slug).Msg("kitchen image list failed")
		return nil
	}
	opts := make([]domain.SlabOption, 0, len(imgs))
	for _, k := range imgs {
		title := k.Title
		if title == "" {
			title = TitleFromFilename(k.Filename)
		}
		opts = append(opts, domain.SlabOption{
			ID:       k.ID.String(),
			Name:     title,
			ImageURL: l.Storage.PublicURL(prefix + "/kitchens/" + k.Filename),
		})
	}
	return opts
}

func (l *Loader) linePrefix(ctx context.Context, line *domain.MaterialLine) string {
	orgSlug := ""
	if org, err := l.Orgs.FindOrganization(ctx, line.OrganizationID); err == nil {
		orgSlug = org.Slug
	}
	return line.StoragePrefix(orgSlug)
}

// TitleFromFilename turns "blue_pearl-granite.jpg" into "Blue Pearl Granite".
func TitleFromFilename(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func isImage(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

// Builtin is the static sample catalog used before a tenant uploads any
// materials. Asset paths resolve against the storefront bundle.
func Builtin() []domain.SlabOption {
	return []domain.SlabOption{
		{ID: "builtin-calacatta-gold", Name: "Calacatta Gold", Description: "Quartz", ImageURL: "/assets/slabs/calacatta-gold.jpg"},
		{ID: "builtin-black-galaxy", Name: "Black Galaxy", Description: "Granite", ImageURL: "/assets/slabs/black-galaxy.jpg"},
		{ID: "builtin-carrara-white", Name: "Carrara White", Description: "Marble", ImageURL: "/assets/slabs/carrara-white.jpg"},
		{ID: "builtin-blue-pearl", Name: "Blue Pearl", Description: "Granite", ImageURL: "/assets/slabs/blue-pearl.jpg"},
		{ID: "builtin-taj-mahal", Name: "Taj Mahal", Description: "Quartzite", ImageURL: "/assets/slabs/taj-mahal.jpg"},
		{ID: "builtin-concrete-grey", Name: "Concrete Grey", Description: "Porcelain", ImageURL: "/assets/slabs/concrete-grey.jpg"},
	}
}
