package domain

import (
	"time"

	"github.com/google/uuid"
)

type MaterialType string

const (
	MaterialGranite   MaterialType = "Granite"
	MaterialQuartz    MaterialType = "Quartz"
	MaterialMarble    MaterialType = "Marble"
	MaterialQuartzite MaterialType = "Quartzite"
	MaterialPorcelain MaterialType = "Porcelain"
	MaterialOther     MaterialType = "Other"
)

// Material is one selectable slab. The backing image lives in object storage
// under the line's folder, keyed by Filename.
type Material struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey"`
	MaterialLineID uuid.UUID    `gorm:"type:uuid;index;not null"`
	Filename       string       `gorm:"size:255;not null"`
	Title          string       `gorm:"size:180"`
	MaterialType   MaterialType `gorm:"type:varchar(30);default:'Other'"`
	DisplayOrder   int          `gorm:"default:0;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MaxKitchenImages caps the stock kitchen photos a line may offer.
const MaxKitchenImages = 3

type KitchenImage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	MaterialLineID uuid.UUID `gorm:"type:uuid;index;not null"`
	Filename       string    `gorm:"size:255;not null"`
	Title          string    `gorm:"size:180"`
	DisplayOrder   int       `gorm:"default:0"`
	CreatedAt      time.Time
}

// SlabOption is the catalog entry shown to the visitor: everything the
// generation call needs about one slab.
type SlabOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl"`
}
