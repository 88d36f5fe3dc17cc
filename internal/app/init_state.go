package app

import (
	"fmt"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"gorm.io/gorm"
)

// HasAdminKey reports whether at least one usable admin API key exists.
func HasAdminKey(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.APIKey{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.APIKey{}).
		Where("scope = ? AND is_active = ? AND revoked_at IS NULL", models.APIKeyScopeAdmin, true).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
