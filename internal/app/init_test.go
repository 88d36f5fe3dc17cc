package app

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apexgirl/reportanalyzer/internal/config"
	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/security"
)

func TestBuildDSN(t *testing.T) {
	dsn, err := BuildDSN(InitRequest{DatabaseType: "postgres", DatabaseUser: "ra", DatabasePassword: "pw", DatabaseHost: "db", DatabasePort: 5432, DatabaseName: "reports"})
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	if dsn != "postgres://ra:pw@db:5432/reports?sslmode=disable" {
		t.Fatalf("unexpected postgres dsn %q", dsn)
	}

	dsn, err = BuildDSN(InitRequest{DatabaseType: "sqlite", DatabasePath: "data.db"})
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "file:data.db?") || !strings.Contains(dsn, "_pragma=journal_mode(WAL)") {
		t.Fatalf("unexpected sqlite dsn %q", dsn)
	}

	if _, err = BuildDSN(InitRequest{DatabaseType: "mysql"}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestInitialize_WritesConfigAndAdminKey(t *testing.T) {
	t.Setenv(config.EnvDBConnection, "")
	t.Setenv(config.EnvAnalysisAPIKey, "")
	t.Setenv(config.EnvAnalysisProvider, "")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	req := InitRequest{
		DatabaseType:     "sqlite",
		DatabasePath:     filepath.Join(dir, "init.db"),
		AnalysisProvider: "Gemini",
		AnalysisAPIKey:   "gm-key",
		Port:             9001,
	}

	result, err := Initialize(configPath, req)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !strings.HasPrefix(result.AdminKey, "ra_") {
		t.Fatalf("unexpected admin key %q", result.AdminKey)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Analysis.Model != "gemini-2.0-flash" {
		t.Fatalf("expected gemini default model, got %q", cfg.Analysis.Model)
	}
	if cfg.Port != 9001 || cfg.Analysis.Provider != config.ProviderGemini || cfg.Analysis.APIKey != "gm-key" || !cfg.Auth.RequireAPIKey {
		t.Fatalf("unexpected config %+v", cfg)
	}
	dsn, err := cfg.DSN()
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}

	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ok, err := HasAdminKey(conn)
	if err != nil || !ok {
		t.Fatalf("expected admin key, got %v %v", ok, err)
	}
	var key models.APIKey
	if errFind := conn.Where("scope = ?", models.APIKeyScopeAdmin).First(&key).Error; errFind != nil {
		t.Fatalf("find key: %v", errFind)
	}
	if errCheck := security.CheckAPIKey(key.KeyHash, result.AdminKey); errCheck != nil {
		t.Fatalf("stored hash does not match returned key: %v", errCheck)
	}
	var tiers int64
	if errCount := conn.Model(&models.Tier{}).Count(&tiers).Error; errCount != nil || tiers != int64(len(db.DefaultTiers)) {
		t.Fatalf("expected seeded tiers, got %d %v", tiers, errCount)
	}

	if _, errAgain := Initialize(configPath, req); !errors.Is(errAgain, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", errAgain)
	}
}

func TestHasAdminKey_IgnoresClientAndRevokedKeys(t *testing.T) {
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "keys.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ok, err := HasAdminKey(conn)
	if err != nil || ok {
		t.Fatalf("expected no admin key before migrate, got %v %v", ok, err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	client := models.APIKey{Name: "bot", Prefix: "ra_client00", KeyHash: "x", Scope: models.APIKeyScopeClient, IsActive: true}
	if errCreate := conn.Create(&client).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}
	if ok, _ = HasAdminKey(conn); ok {
		t.Fatalf("client key must not count as admin")
	}

	if _, errKey := CreateAdminAPIKey(conn, "root"); errKey != nil {
		t.Fatalf("CreateAdminAPIKey: %v", errKey)
	}
	if ok, _ = HasAdminKey(conn); !ok {
		t.Fatalf("expected admin key")
	}
}
