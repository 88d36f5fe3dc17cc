package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an individual uploader identified by an external chat identity.
type User struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	DiscordID      string `gorm:"type:varchar(64);not null;uniqueIndex"` // External chat identity.
	Username       string `gorm:"type:text"`                             // Display name.
	InGamePlayerID string `gorm:"type:varchar(64)"`                      // Optional in-game identifier.

	TierID uint64 `gorm:"not null;index"`                                 // Assigned tier ID.
	Tier   *Tier  `gorm:"foreignKey:TierID;constraint:OnDelete:RESTRICT"` // Assigned tier.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt *time.Time `gorm:"index"`                   // Soft-delete timestamp.
}

// BeforeCreate assigns a UUID when none is set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Group is a shared community space whose uploads count against a pooled quota.
type Group struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	ExternalID      string `gorm:"type:varchar(64);not null;uniqueIndex"` // External server identity.
	Name            string `gorm:"type:text"`                             // Display name.
	OwnerExternalID string `gorm:"type:varchar(64)"`                      // External identity of the owner.

	TierID *uint64 `gorm:"index"`                                          // Optional tier ID.
	Tier   *Tier   `gorm:"foreignKey:TierID;constraint:OnDelete:SET NULL"` // Optional tier.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt *time.Time `gorm:"index"`                   // Soft-delete timestamp.
}

// TableName overrides the default table name.
func (Group) TableName() string {
	return "communities"
}

// BeforeCreate assigns a UUID when none is set.
func (g *Group) BeforeCreate(_ *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
