package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apexgirl/reportanalyzer/internal/config"
	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/security"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// InitRequest contains parameters for first-time setup.
type InitRequest struct {
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePath     string
	DatabaseSSLMode  string
	AnalysisProvider string
	AnalysisAPIKey   string
	AdminKeyName     string
	Port             int
}

// InitResult reports what setup produced.
type InitResult struct {
	ConfigPath string
	AdminKey   string
}

// ErrAlreadyInitialized is returned when the config file already exists.
var ErrAlreadyInitialized = errors.New("config file already exists")

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "reportanalyzer.db"

// BuildDSN builds a database DSN from the init request.
func BuildDSN(req InitRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", db.DialectSQLite:
		path := strings.TrimSpace(req.DatabasePath)
		if path == "" {
			path = defaultSQLitePath
		}
		return db.NormalizeSQLiteDSN(path), nil
	case db.DialectPostgres:
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", req.DatabaseType)
	}
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	defer func() {
		if errClose := sqlDB.Close(); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	return sqlDB.Ping()
}

// validateInitRequest normalizes and validates init input data.
func validateInitRequest(req *InitRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = db.DialectSQLite
	}
	req.DatabaseType = dbType

	switch dbType {
	case db.DialectPostgres:
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("database name is required")
		}
	case db.DialectSQLite:
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}

	req.AnalysisProvider = strings.ToLower(strings.TrimSpace(req.AnalysisProvider))
	switch req.AnalysisProvider {
	case "":
		req.AnalysisProvider = config.ProviderOpenAI
	case config.ProviderOpenAI, config.ProviderGemini:
	default:
		return fmt.Errorf("unsupported analysis provider %q", req.AnalysisProvider)
	}
	if strings.TrimSpace(req.AdminKeyName) == "" {
		req.AdminKeyName = "Administrator"
	}
	return nil
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host          string      `yaml:"host"`
	Port          int         `yaml:"port"`
	DatabaseDSN   string      `yaml:"database-dsn"`
	Debug         bool        `yaml:"debug"`
	LoggingToFile bool        `yaml:"logging-to-file"`
	Analysis      analysisCfg `yaml:"analysis"`
	Auth          authCfg     `yaml:"auth"`
}

// analysisCfg holds extraction settings for the generated config file.
type analysisCfg struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api-key,omitempty"`
}

// authCfg holds API-key settings for the generated config file.
type authCfg struct {
	RequireAPIKey bool `yaml:"require-api-key"`
}

// WriteConfigFile writes the initial config file to disk.
func WriteConfigFile(configPath string, dsn string, req InitRequest) error {
	cfg := configFile{
		Port:        req.Port,
		DatabaseDSN: dsn,
		Analysis: analysisCfg{
			Provider: req.AnalysisProvider,
			APIKey:   strings.TrimSpace(req.AnalysisAPIKey),
		},
		Auth: authCfg{RequireAPIKey: true},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// CreateAdminAPIKey issues an admin-scope key and returns its plaintext.
func CreateAdminAPIKey(conn *gorm.DB, name string) (string, error) {
	if conn == nil {
		return "", fmt.Errorf("open database: nil connection")
	}
	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		return "", fmt.Errorf("generate api key: %w", errGenerate)
	}
	hash, errHash := security.HashAPIKey(token)
	if errHash != nil {
		return "", fmt.Errorf("hash api key: %w", errHash)
	}
	row := models.APIKey{
		Name:     strings.TrimSpace(name),
		Prefix:   security.APIKeyLookupPrefix(token),
		KeyHash:  hash,
		Scope:    models.APIKeyScopeAdmin,
		IsActive: true,
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		return "", fmt.Errorf("create admin api key: %w", errCreate)
	}
	return token, nil
}

// Initialize writes a config file, prepares the database and issues the
// first admin key. It refuses to overwrite an existing config file.
func Initialize(configPath string, req InitRequest) (*InitResult, error) {
	if ConfigExists(configPath) {
		return nil, ErrAlreadyInitialized
	}
	if errValidate := validateInitRequest(&req); errValidate != nil {
		return nil, errValidate
	}
	dsn, errBuild := BuildDSN(req)
	if errBuild != nil {
		return nil, errBuild
	}
	if errTest := TestDatabaseConnection(dsn); errTest != nil {
		return nil, errTest
	}

	conn, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, fmt.Errorf("migrate database: %w", errMigrate)
	}
	if errSeed := db.EnsureDefaultTiers(conn); errSeed != nil {
		return nil, errSeed
	}
	token, errKey := CreateAdminAPIKey(conn, req.AdminKeyName)
	if errKey != nil {
		return nil, errKey
	}

	if errWrite := WriteConfigFile(configPath, dsn, req); errWrite != nil {
		return nil, errWrite
	}
	return &InitResult{ConfigPath: configPath, AdminKey: token}, nil
}
