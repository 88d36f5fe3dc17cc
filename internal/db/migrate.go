package db

import (
	"fmt"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Tier{},
		&models.TierLimit{},
		&models.User{},
		&models.Group{},
		&models.Submission{},
		&models.Result{},
		&models.Side{},
		&models.APIKey{},
		&models.ModelPrice{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// Partial indexes back the quota window counts and the duplicate lookup.
	indexes := []struct {
		name    string
		table   string
		columns string
		where   string
	}{
		{"idx_submissions_user_success", "submissions", "user_id, created_at", "status = 'success' AND deleted_at IS NULL"},
		{"idx_submissions_group_success", "submissions", "group_id, created_at", "status = 'success' AND deleted_at IS NULL"},
		{"idx_submissions_hash_success", "submissions", "image_hash, created_at", "status = 'success' AND deleted_at IS NULL"},
	}
	for _, idx := range indexes {
		if errIndex := conn.Exec(createIndexSQL(conn, idx.name, idx.table, idx.columns, idx.where)).Error; errIndex != nil {
			return fmt.Errorf("db: create index %s: %w", idx.name, errIndex)
		}
	}
	return nil
}
