package models

import "time"

// ModelPrice stores per-model token prices synced from models.dev.
type ModelPrice struct {
	ProviderName string `gorm:"type:varchar(255);not null;primaryKey"` // models.dev provider key.
	ModelID      string `gorm:"type:varchar(255);not null;primaryKey"` // Provider model identifier.

	InputPrice  *float64 `gorm:"type:decimal(20,10)"` // Price per million input tokens.
	OutputPrice *float64 `gorm:"type:decimal(20,10)"` // Price per million output tokens.

	LastSeenAt time.Time `gorm:"not null;index"`          // Last sync timestamp.
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime"` // Update timestamp.
}
