package store

import (
	"time"

	"gorm.io/datatypes"
)

// ItemModel is the GORM model used for persistence. Additional image URLs are
// stored as a single jsonb array in submission order.
type ItemModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Type        string `gorm:"not null"`
	Description string `gorm:"type:text;not null"`
	CoverImage  string `gorm:"not null"`
	Images      datatypes.JSON
	CreatedAt   time.Time `gorm:"not null;index"`
}
