package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/apexgirl/reportanalyzer/internal/app"
	"github.com/apexgirl/reportanalyzer/internal/config"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run dispatches to serve (default), init or migrate.
func run(ctx context.Context, args []string) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		return runServe(ctx, args)
	case "init":
		return runInit(args)
	case "migrate":
		return runMigrate(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (want serve, init or migrate)", command)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "server port, overrides the config file")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if *port != 0 {
		if errValidate := validatePort(*port); errValidate != nil {
			return errValidate
		}
	}

	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	if !app.ConfigExists(appCfg.ConfigPath) && strings.TrimSpace(os.Getenv(config.EnvDBConnection)) == "" {
		return fmt.Errorf("config not found at %s; run `reportanalyzer init` or set %s", appCfg.ConfigPath, config.EnvDBConnection)
	}
	return app.RunServer(ctx, appCfg, *port)
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path to create (or env CONFIG_PATH)")
	var req app.InitRequest
	fs.StringVar(&req.DatabaseType, "db-type", "sqlite", "database type: sqlite or postgres")
	fs.StringVar(&req.DatabasePath, "db-path", "", "sqlite database file")
	fs.StringVar(&req.DatabaseHost, "db-host", "", "postgres host")
	fs.IntVar(&req.DatabasePort, "db-port", 5432, "postgres port")
	fs.StringVar(&req.DatabaseUser, "db-user", "", "postgres user")
	fs.StringVar(&req.DatabaseName, "db-name", "", "postgres database")
	fs.StringVar(&req.DatabaseSSLMode, "db-sslmode", "disable", "postgres sslmode")
	fs.StringVar(&req.AnalysisProvider, "provider", config.ProviderOpenAI, "analysis provider: openai or gemini")
	fs.StringVar(&req.AdminKeyName, "admin-key-name", "Administrator", "name of the first admin api key")
	fs.IntVar(&req.Port, "port", 8318, "server port written to the config")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(req.Port); errValidate != nil {
		return errValidate
	}
	req.DatabasePassword = os.Getenv("DB_PASSWORD")
	req.AnalysisAPIKey = os.Getenv(config.EnvAnalysisAPIKey)

	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	result, err := app.Initialize(appCfg.ConfigPath, req)
	if err != nil {
		return err
	}
	log.Infof("wrote %s", result.ConfigPath)
	fmt.Printf("admin api key (shown once): %s\n", result.AdminKey)
	return nil
}

func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	return app.Migrate(ctx, appCfg)
}

func loadAppConfig(cfgPath string) (config.AppConfig, error) {
	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return config.AppConfig{}, err
	}
	if strings.TrimSpace(cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
	}
	return appCfg, nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
