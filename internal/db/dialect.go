package db

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// PartialIndexSupported reports whether CREATE INDEX ... WHERE is available.
func PartialIndexSupported(conn *gorm.DB) bool {
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres:
		return true
	default:
		return false
	}
}

// createIndexSQL builds an idempotent CREATE INDEX statement with an optional predicate.
func createIndexSQL(conn *gorm.DB, name, table, columns, where string) string {
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, columns)
	if where != "" && PartialIndexSupported(conn) {
		stmt += " WHERE " + where
	}
	return stmt
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
