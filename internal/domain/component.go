package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Component is the shared, versionless identity of a UI building block.
// VersionCount and PublishedVersionCount are caches maintained by the publish
// coordinator; PublishedVersionCount must always equal the count of non-deleted
// published versions of the component.
type Component struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ComponentID string    `gorm:"column:component_id;not null;uniqueIndex" json:"component_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`

	CategoryLevel1     string `gorm:"column:category_level1;not null;index" json:"category_level1"`
	CategoryLevel2     string `gorm:"column:category_level2;not null;index" json:"category_level2"`
	CategoryLevel1Name string `gorm:"column:category_level1_name" json:"category_level1_name"`
	CategoryLevel2Name string `gorm:"column:category_level2_name" json:"category_level2_name"`

	VersionCount          int `gorm:"not null;default:0" json:"version_count"`
	PublishedVersionCount int `gorm:"not null;default:0" json:"published_version_count"`

	ThumbnailURL string `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Component) TableName() string { return "component" }
