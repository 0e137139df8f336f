package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VersionStatusDraft     = "draft"
	VersionStatusPublished = "published"
)

// ComponentVersion is one concrete build of a component. (component_id, version)
// is unique among non-deleted rows; at most one version per component carries
// is_latest, and only a published version may carry it.
type ComponentVersion struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ComponentID string    `gorm:"column:component_id;not null;index" json:"component_id"`
	Version     string    `gorm:"not null" json:"version"`

	BuildHash  string    `gorm:"column:build_hash" json:"build_hash,omitempty"`
	BuildTime  time.Time `gorm:"column:build_time" json:"build_time,omitempty"`
	CLIVersion string    `gorm:"column:cli_version" json:"cli_version,omitempty"`

	// EntryPath is the entry file's path inside the artifact prefix, kept so
	// a time-limited download link can be signed without re-reading the
	// package.
	EntryPath  string `gorm:"column:entry_path" json:"entry_path,omitempty"`
	EntryURL   string `gorm:"column:entry_url" json:"entry_url,omitempty"`
	StyleURL   string `gorm:"column:style_url" json:"style_url,omitempty"`
	PreviewURL string `gorm:"column:preview_url" json:"preview_url,omitempty"`

	Changelog string `json:"changelog,omitempty"`

	Status      string     `gorm:"not null;default:'draft';index" json:"status"`
	IsLatest    bool       `gorm:"column:is_latest;not null;default:false;index" json:"is_latest"`
	PublishedAt *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ComponentVersion) TableName() string { return "component_version" }
