package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/analysis"
	"github.com/apexgirl/reportanalyzer/internal/archive"
	"github.com/apexgirl/reportanalyzer/internal/config"
	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/dedupe"
	"github.com/apexgirl/reportanalyzer/internal/http/api/admin"
	"github.com/apexgirl/reportanalyzer/internal/http/api/front"
	"github.com/apexgirl/reportanalyzer/internal/logging"
	"github.com/apexgirl/reportanalyzer/internal/metrics"
	"github.com/apexgirl/reportanalyzer/internal/pricing"
	"github.com/apexgirl/reportanalyzer/internal/quota"
	"github.com/apexgirl/reportanalyzer/internal/reservation"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/apexgirl/reportanalyzer/internal/submission"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, appCfg config.AppConfig) error {
	cfg, err := config.Load(config.ResolveConfigPath(appCfg.ConfigPath))
	if err != nil {
		return err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer loads configuration, wires the upload pipeline and serves HTTP
// until ctx is cancelled. A positive port overrides the configured one.
func RunServer(ctx context.Context, appCfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}
	logCloser := logging.Setup(logging.Options{Debug: cfg.Debug, ToFile: cfg.LoggingToFile, Dir: cfg.LogDir})
	defer func() { _ = logCloser.Close() }()

	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	conn, err := openDatabase(dsn, cfg.Seed)
	if err != nil {
		return err
	}

	engine, cleanup, err := buildEngine(ctx, cfg, conn)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.WithFields(log.Fields{
		"addr":     addr,
		"config":   configPath,
		"provider": cfg.Analysis.Provider,
		"model":    cfg.Analysis.Model,
	}).Info("starting report analyzer")
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

func openDatabase(dsn string, seed config.SeedConfig) (*gorm.DB, error) {
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	if !seed.SkipDefaultTiers {
		if errSeed := db.EnsureDefaultTiers(conn); errSeed != nil {
			return nil, errSeed
		}
	}
	if errKey := db.EnsureDevAPIKey(conn, seed.DevAPIKey); errKey != nil {
		return nil, errKey
	}
	if ok, errAdmin := HasAdminKey(conn); errAdmin != nil {
		return nil, errAdmin
	} else if !ok {
		log.Warn("no admin api key exists; run `reportanalyzer init` or set seed.dev-api-key")
	}
	return conn, nil
}

// buildEngine assembles the pipeline and routes. cleanup releases the
// analysis client.
func buildEngine(ctx context.Context, cfg *config.Config, conn *gorm.DB) (*gin.Engine, func(), error) {
	s := store.New(conn)
	ledger := quota.NewLedger(s)

	priceSource := pricing.NewSource(conn, cfg.Pricing.Provider)
	if cfg.Pricing.SyncEnabled {
		pricing.NewSyncer(conn, cfg.Pricing.URL, cfg.Pricing.SyncInterval.Std()).Start(ctx)
	}

	gateway, gatewayCloser, err := analysis.New(ctx, cfg.Analysis, priceSource)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if errClose := gatewayCloser.Close(); errClose != nil {
			log.WithError(errClose).Warn("close analysis client")
		}
	}

	deps := submission.Deps{
		Store:    s,
		Ledger:   ledger,
		Detector: dedupe.NewDetector(s),
		Gateway:  gateway,
		Reservations: reservation.NewManager(func() reservation.Settings {
			return reservation.Settings{
				RedisEnabled:  cfg.Reservation.RedisEnabled,
				RedisAddr:     cfg.Reservation.RedisAddr,
				RedisPassword: cfg.Reservation.RedisPassword,
				RedisDB:       cfg.Reservation.RedisDB,
				RedisPrefix:   cfg.Reservation.RedisPrefix,
				TTL:           cfg.Reservation.TTL.Std(),
			}
		}, nil, nil),
	}
	archiver, errArchive := archive.New(cfg.Archive)
	if errArchive != nil {
		cleanup()
		return nil, nil, fmt.Errorf("archive: %w", errArchive)
	}
	if archiver != nil {
		deps.Archive = archiver
	}
	service := submission.NewService(deps, submission.Options{
		Model:         cfg.Analysis.Model,
		PromptVersion: cfg.Analysis.PromptVersion,
		Timeout:       cfg.Analysis.Timeout.Std(),
		Debug:         cfg.Debug,
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(metrics.Middleware())
	engine.MaxMultipartMemory = cfg.Upload.MaxBytes + 1<<20
	engine.GET("/metrics", metrics.Handler())

	front.RegisterFrontRoutes(engine, front.Deps{
		Processor:      service,
		Quota:          ledger,
		Submissions:    s,
		Tiers:          s,
		Keys:           s,
		Ping:           func() error { return db.Ping(conn) },
		MaxUploadBytes: cfg.Upload.MaxBytes,
		RequireAPIKey:  cfg.Auth.RequireAPIKey,
	})
	admin.RegisterAdminRoutes(engine, s)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine, cleanup, nil
}

// corsMiddleware enables permissive CORS for dashboard clients.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
