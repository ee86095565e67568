// Package internal assembles the sitepulse application
package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/database"
	"sitepulse/internal/jobs"
	"sitepulse/internal/pkg/geoip"
	"sitepulse/internal/users"
)

// geoDBCheckInterval is how often the GeoIP file is checked for updates
const geoDBCheckInterval = 10 * time.Minute

// Application wraps cartridge.Application with the sitepulse database manager
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	logger    *slog.Logger
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig connects the database and assembles the server with its
// background jobs
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)
	geoip.InitLogger(logger)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      NewServerConfig(cfg),
		RouteMountFunc:    MountAppRoutes,
		BackgroundWorkers: []cartridge.BackgroundWorker{NewScheduler(cfg, dbManager, logger)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		logger:      logger,
	}, nil
}

// NewServerConfig returns the server settings shared by the binary and tests.
// The global Sec-Fetch-Site check runs ahead of every route and would block
// tracker beacons, so it is off; login and admin routes carry their own.
func NewServerConfig(cfg *config.Config) *cartridge.ServerConfig {
	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.EnableSecFetchSite = false
	serverCfg.StaticPrefix = cfg.PublicAssetsUrlPrefix
	return serverCfg
}

// BootstrapAdmin creates the configured admin account when it is missing.
// Must run after migrations.
func (a *Application) BootstrapAdmin(cfg *config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	if err := users.EnsureAdminUser(a.DBManager.GetConnection(), a.logger, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}
	return nil
}

// NewScheduler registers the maintenance jobs
func NewScheduler(cfg *config.Config, dbManager *database.DBManager, logger *slog.Logger) *jobs.Scheduler {
	db := dbManager.GetConnection()
	sessions := auth.NewSessionStore(db, logger, time.Duration(cfg.GetLoginSessionTimeout())*time.Second)

	interval := time.Duration(cfg.JobIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	scheduler := jobs.NewScheduler(logger).
		Every(interval, jobs.NewSessionCleanupJob(sessions, logger))
	if cfg.GeoDBPath != "" {
		scheduler.Every(geoDBCheckInterval, jobs.NewGeoDBReloadJob(cfg.GeoDBPath, geoip.ReloadGeoDB, logger))
	}
	return scheduler
}
