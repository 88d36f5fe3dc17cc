package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	// SubmissionPending is set before the analysis call.
	SubmissionPending SubmissionStatus = "pending"
	// SubmissionSuccess is set once the result is persisted.
	SubmissionSuccess SubmissionStatus = "success"
	// SubmissionFailed is set when analysis or persistence failed.
	SubmissionFailed SubmissionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionSuccess || s == SubmissionFailed
}

// Submission records one upload attempt and its processing outcome.
type Submission struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	ImageHash     string           `gorm:"type:varchar(64);not null;index"`                   // SHA-256 hex of the image bytes.
	Status        SubmissionStatus `gorm:"type:varchar(16);not null;default:'pending';index"` // Lifecycle status.
	FailureReason string           `gorm:"type:text"`                                         // Set only when failed.

	UserID  string  `gorm:"type:varchar(36);not null;index"`                 // Uploading user ID.
	User    *User   `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`  // Uploading user.
	GroupID *string `gorm:"type:varchar(36);index"`                          // Optional group ID.
	Group   *Group  `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL"` // Optional group.

	ChannelID string `gorm:"type:varchar(64)"` // Originating channel reference.
	MessageID string `gorm:"type:varchar(64)"` // Originating message reference.

	AnalysisModel string  `gorm:"type:varchar(128)"`                      // Model used for extraction.
	PromptVersion string  `gorm:"type:varchar(32)"`                       // Prompt version used for extraction.
	TokenEstimate int     `gorm:"not null;default:0"`                     // Tokens consumed by the analysis call.
	EstimatedCost float64 `gorm:"type:decimal(20,10);not null;default:0"` // Estimated analysis cost.
	ArchiveKey    string  `gorm:"type:text"`                              // Object key of the archived image.

	Result *Result `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"` // Extracted result.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
	DeletedAt *time.Time `gorm:"index"`                         // Soft-delete timestamp.
}

// BeforeCreate assigns a UUID when none is set.
func (s *Submission) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Result holds the structured extraction of a successful submission.
type Result struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	SubmissionID string `gorm:"type:varchar(36);not null;uniqueIndex"` // Owning submission ID.

	Category          string         `gorm:"type:varchar(64)"`                 // Battle type.
	OccurredAt        time.Time      `gorm:"not null"`                         // When the battle happened.
	ExtractionVersion int            `gorm:"not null;default:1"`               // Extraction schema version.
	RawPayload        datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Raw extraction payload.

	Sides []Side `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE"` // Primary and opposing sides.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt *time.Time `gorm:"index"`                   // Soft-delete timestamp.
}

// BeforeCreate assigns a UUID when none is set.
func (r *Result) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// SideRole distinguishes the uploader's side from the opponent.
type SideRole string

const (
	// SidePrimary is the uploader's side.
	SidePrimary SideRole = "primary"
	// SideOpposing is the opponent.
	SideOpposing SideRole = "opposing"
)

// Side holds per-participant battle statistics.
type Side struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ResultID string   `gorm:"type:varchar(36);not null;uniqueIndex:idx_sides_result_role"` // Owning result ID.
	Role     SideRole `gorm:"type:varchar(16);not null;uniqueIndex:idx_sides_result_role"` // Side role.

	Username       string `gorm:"type:text"`        // Player display name.
	InGamePlayerID string `gorm:"type:varchar(64)"` // In-game identifier.
	GroupTag       string `gorm:"type:varchar(32)"` // Guild tag.
	Level          *int   // Player level.

	FanCount       int  `gorm:"not null;default:0"` // Fans committed.
	LossCount      int  `gorm:"not null;default:0"` // Fans lost.
	InjuredCount   int  `gorm:"not null;default:0"` // Fans injured.
	RemainingCount *int // Fans remaining.
	ReinforceCount *int // Reinforcements.

	Sing  int `gorm:"not null;default:0"` // Sing attribute.
	Dance int `gorm:"not null;default:0"` // Dance attribute.

	ActiveSkill             float64 `gorm:"type:decimal(10,2);not null;default:0"` // Active skill modifier.
	BasicAttackBonus        float64 `gorm:"type:decimal(10,2);not null;default:0"` // Basic attack bonus.
	ReduceBasicAttackDamage float64 `gorm:"type:decimal(10,2);not null;default:0"` // Basic attack damage reduction.
	SkillBonus              float64 `gorm:"type:decimal(10,2);not null;default:0"` // Skill bonus.
	SkillReduction          float64 `gorm:"type:decimal(10,2);not null;default:0"` // Skill damage reduction.
	ExtraDamage             float64 `gorm:"type:decimal(10,2);not null;default:0"` // Extra damage modifier.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
