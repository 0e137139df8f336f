package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ApplicationTypeNew     = "NEW"
	ApplicationTypeVersion = "VERSION"
	ApplicationTypeReplace = "REPLACE"
)

type ApplicationStatus string

const (
	StatusPendingInfo    ApplicationStatus = "pending_info"
	StatusAwaitingUpload ApplicationStatus = "awaiting_upload"
	StatusUploaded       ApplicationStatus = "uploaded"
	StatusUnderReview    ApplicationStatus = "under_review"
	StatusApproved       ApplicationStatus = "approved"
	StatusRejected       ApplicationStatus = "rejected"
	StatusCompleted      ApplicationStatus = "completed"
	StatusCancelled      ApplicationStatus = "cancelled"
)

var statusLabels = map[ApplicationStatus]string{
	StatusPendingInfo:    "pending info review",
	StatusAwaitingUpload: "awaiting upload",
	StatusUploaded:       "uploaded",
	StatusUnderReview:    "under review",
	StatusApproved:       "approved",
	StatusRejected:       "rejected",
	StatusCompleted:      "completed",
	StatusCancelled:      "cancelled",
}

// Label returns the human-readable name used in state errors.
func (s ApplicationStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// EditableStatuses is the set of states in which the applicant may still change
// the application. The create-time status must be a member of this set and of
// CancellableStatuses.
var EditableStatuses = []ApplicationStatus{StatusPendingInfo, StatusAwaitingUpload, StatusRejected}

var CancellableStatuses = []ApplicationStatus{StatusPendingInfo, StatusAwaitingUpload}

var ReviewableStatuses = []ApplicationStatus{StatusPendingInfo, StatusUploaded, StatusUnderReview}

// UploadableStatuses gates the package upload: the approved round plus the
// resubmission round after a rejection.
var UploadableStatuses = []ApplicationStatus{StatusApproved, StatusAwaitingUpload, StatusRejected}

var TerminalStatuses = []ApplicationStatus{StatusCompleted, StatusCancelled}

func StatusIn(s ApplicationStatus, set []ApplicationStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// DevelopmentApplication tracks one approval-workflow instance from submission
// through review to completed publication. While the application is not in a
// terminal state, (ComponentID, TargetVersion) reserves that version number.
type DevelopmentApplication struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ApplicationNo string    `gorm:"column:application_no;not null;uniqueIndex" json:"application_no"`

	ApplicationType string `gorm:"column:application_type;not null" json:"application_type"`

	ComponentID   string `gorm:"column:component_id;not null;index" json:"component_id"`
	ComponentName string `gorm:"column:component_name" json:"component_name,omitempty"`

	CategoryLevel1     string `gorm:"column:category_level1" json:"category_level1,omitempty"`
	CategoryLevel2     string `gorm:"column:category_level2" json:"category_level2,omitempty"`
	CategoryLevel1Name string `gorm:"column:category_level1_name" json:"category_level1_name,omitempty"`
	CategoryLevel2Name string `gorm:"column:category_level2_name" json:"category_level2_name,omitempty"`

	TargetVersion     string     `gorm:"column:target_version;not null;index" json:"target_version"`
	ExistingVersionID *uuid.UUID `gorm:"column:existing_version_id;type:uuid" json:"existing_version_id,omitempty"`

	Description string `json:"description,omitempty"`
	Changelog   string `json:"changelog,omitempty"`

	DevelopmentStatus ApplicationStatus `gorm:"column:development_status;not null;index" json:"development_status"`

	ApplicantID uuid.UUID  `gorm:"column:applicant_id;type:uuid;not null;index" json:"applicant_id"`
	ReviewerID  *uuid.UUID `gorm:"column:reviewer_id;type:uuid" json:"reviewer_id,omitempty"`

	ReviewInfo datatypes.JSON `gorm:"column:review_info" json:"review_info,omitempty"`
	UploadInfo datatypes.JSON `gorm:"column:upload_info" json:"upload_info,omitempty"`

	ComponentVersionID *uuid.UUID `gorm:"column:component_version_id;type:uuid" json:"component_version_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DevelopmentApplication) TableName() string { return "development_application" }

// ReviewRecord is the serialized form of DevelopmentApplication.ReviewInfo.
type ReviewRecord struct {
	Action     string    `json:"action"`
	Comment    string    `json:"comment,omitempty"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	ReviewedAt time.Time `json:"reviewed_at"`
	SelfReview bool      `json:"self_review,omitempty"`
}

// UploadRecord is the serialized form of DevelopmentApplication.UploadInfo.
type UploadRecord struct {
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	FileCount  int       `json:"file_count"`
	BuildHash  string    `json:"build_hash,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ApplicationSequence backs per-day application number allocation. The row is
// locked FOR UPDATE while the counter is incremented.
type ApplicationSequence struct {
	Day     string `gorm:"primaryKey;size:8" json:"day"`
	Counter int    `gorm:"not null;default:0" json:"counter"`
}

func (ApplicationSequence) TableName() string { return "application_sequence" }
