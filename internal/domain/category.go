package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is one entry of the two-level classification directory. Level 1
// rows have an empty ParentCode; level 2 rows point at their level 1 parent.
type Category struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code       string    `gorm:"not null;uniqueIndex" json:"code"`
	ParentCode string    `gorm:"column:parent_code;index" json:"parent_code,omitempty"`
	Level      int       `gorm:"not null" json:"level"`
	Name       string    `gorm:"not null" json:"name"`
	Active     bool      `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Category) TableName() string { return "category" }

// CategoryPair is a validated level1/level2 pair with display names resolved.
type CategoryPair struct {
	Level1     string `json:"level1"`
	Level2     string `json:"level2"`
	Level1Name string `json:"level1_name"`
	Level2Name string `json:"level2_name"`
}
