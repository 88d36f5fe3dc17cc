package models

import "time"

// Scope identifies which subject a tier limit applies to.
type Scope string

const (
	// ScopeIndividual limits a single user.
	ScopeIndividual Scope = "individual"
	// ScopeGroup limits all uploads attributed to a group.
	ScopeGroup Scope = "group"
)

// Valid reports whether the scope is a known value.
func (s Scope) Valid() bool {
	return s == ScopeIndividual || s == ScopeGroup
}

// Tier is a named subscription level.
type Tier struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(64);not null;uniqueIndex"` // Unique tier name.
	Description string `gorm:"type:text"`                             // Display description.
	SortOrder   int    `gorm:"not null;default:0"`                    // Display ordering weight.

	Limits []TierLimit `gorm:"foreignKey:TierID;constraint:OnDelete:CASCADE"` // Per-scope limits.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TierLimit holds the daily and monthly caps of a tier for one scope.
type TierLimit struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TierID uint64 `gorm:"not null;uniqueIndex:idx_tier_limits_tier_scope"`                  // Owning tier ID.
	Scope  Scope  `gorm:"type:varchar(16);not null;uniqueIndex:idx_tier_limits_tier_scope"` // Limited subject kind.

	DailyRequestLimit   int `gorm:"not null;default:0"` // Successful uploads per UTC day.
	MonthlyRequestLimit int `gorm:"not null;default:0"` // Successful uploads per UTC month.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
