package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSNInfo describes the database a DSN points at.
type DSNInfo struct {
	Dialect string
	Host    string
	Name    string
	Path    string
}

// ParseDSN classifies a DSN as SQLite (file: prefix) or PostgreSQL (URL form).
func ParseDSN(dsn string) (DSNInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return DSNInfo{}, fmt.Errorf("db: empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return DSNInfo{Dialect: DialectSQLite, Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return DSNInfo{}, fmt.Errorf("db: parse dsn: %w", errParse)
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		return DSNInfo{
			Dialect: DialectPostgres,
			Host:    strings.TrimSpace(u.Hostname()),
			Name:    strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
		}, nil
	default:
		return DSNInfo{}, fmt.Errorf("db: unsupported dsn scheme %q", u.Scheme)
	}
}

// NormalizeSQLiteDSN appends the connection pragmas the service relies on.
// Pragmas already present in dsn are left untouched.
func NormalizeSQLiteDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	var params []string
	for _, pragma := range []string{
		"foreign_keys(1)",
		"journal_mode(WAL)",
		"busy_timeout(5000)",
		"synchronous(NORMAL)",
	} {
		name, _, _ := strings.Cut(pragma, "(")
		if !strings.Contains(strings.ToLower(dsn), "_pragma="+name) {
			params = append(params, "_pragma="+pragma)
		}
	}
	if len(params) == 0 {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join(params, "&")
}

// Open connects to the database named by dsn.
func Open(dsn string) (*gorm.DB, error) {
	info, errParse := ParseDSN(dsn)
	if errParse != nil {
		return nil, errParse
	}

	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch info.Dialect {
	case DialectSQLite:
		dialector = sqlite.Open(NormalizeSQLiteDSN(dsn))
	default:
		dialector = postgres.Open(dsn)
	}

	conn, errOpen := gorm.Open(dialector, cfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open %s: %w", info.Dialect, errOpen)
	}
	if info.Dialect == DialectSQLite {
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return nil, fmt.Errorf("db: sql handle: %w", errDB)
		}
		// One connection serializes writers; busy_timeout covers external ones.
		sqlDB.SetMaxOpenConns(1)
	}
	log.WithFields(log.Fields{"dialect": info.Dialect, "host": info.Host, "name": info.Name, "path": info.Path}).Info("database connected")
	return conn, nil
}

// Ping verifies the connection is reachable.
func Ping(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return fmt.Errorf("db: sql handle: %w", errDB)
	}
	return sqlDB.Ping()
}
