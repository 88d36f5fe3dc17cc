package models

import "time"

// APIKeyScope bounds what an API key may call.
type APIKeyScope string

const (
	// APIKeyScopeClient may upload and query quota.
	APIKeyScopeClient APIKeyScope = "client"
	// APIKeyScopeAdmin may also manage users and groups.
	APIKeyScopeAdmin APIKeyScope = "admin"
)

// APIKey authenticates bot and service callers.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name    string      `gorm:"type:text;not null"`                         // Display name.
	Prefix  string      `gorm:"type:varchar(16);not null;index"`            // Lookup prefix of the plaintext key.
	KeyHash string      `gorm:"type:text;not null"`                         // bcrypt hash of the plaintext key.
	Scope   APIKeyScope `gorm:"type:varchar(16);not null;default:'client'"` // Granted scope.

	IsActive   bool       `gorm:"not null;default:true"` // Whether the key can be used.
	ExpiresAt  *time.Time // Optional expiry.
	RevokedAt  *time.Time // Revocation timestamp.
	LastUsedAt *time.Time // Last successful use.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
