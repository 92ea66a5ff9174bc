package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/config"
	"github.com/dwizi/intakebot/internal/connectors/telegram"
	"github.com/dwizi/intakebot/internal/dispatch"
	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/httpapi"
	"github.com/dwizi/intakebot/internal/jira"
	"github.com/dwizi/intakebot/internal/media"
	"github.com/dwizi/intakebot/internal/metrics"
	"github.com/dwizi/intakebot/internal/refresh"
	"github.com/dwizi/intakebot/internal/scheduler"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/tickets"
	"github.com/dwizi/intakebot/internal/watcher"
	"github.com/dwizi/intakebot/internal/wizard"
)

// New wires every component. Nothing is started until Run.
func New(cfg config.Config, version string, logger *slog.Logger) (*Runtime, error) {
	sqlStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	holder, err := loadCatalog(context.Background(), cfg, sqlStore, logger)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	var heartbeatRegistry *heartbeat.Registry
	if cfg.HeartbeatEnabled {
		heartbeatRegistry = heartbeat.NewRegistry()
		heartbeatRegistry.Starting("runtime", "booting")
		heartbeatRegistry.Starting("dispatcher", "initializing")
		heartbeatRegistry.Starting("scheduler", "initializing")
		heartbeatRegistry.Starting("api", "initializing")
	}

	recorder := metrics.New()
	jiraClient := jira.New(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraAPIToken)
	if !cfg.JiraEnabled() {
		logger.Warn("jira credentials missing, tickets cannot be created")
	}
	telegramClient := telegram.NewClient(cfg.TelegramToken, cfg.TelegramAPI, time.Duration(cfg.TelegramPoll+10)*time.Second)

	stager := media.New(
		cfg.StagingDir,
		int64(cfg.MaxAttachmentMB)<<20,
		telegramClient,
		jiraClient,
		logger.With("component", "media"),
	)
	assembler := tickets.New(
		tickets.Config{
			ProjectKey:   cfg.JiraProjectKey,
			BugParentKey: cfg.JiraBugParentKey,
			ReporterID:   cfg.JiraReporterID,
		},
		sqlStore,
		jiraClient,
		holder,
		tickets.WithLocation(ticketLocation(cfg.TicketTimezone, logger)),
	)
	engine := wizard.New(wizard.Dependencies{
		Store:     sqlStore,
		Messenger: telegramClient,
		Media:     stager,
		Tickets:   assembler,
		Links:     jiraClient,
		Catalog:   holder,
		Observer:  recorder,
		Logger:    logger,
	})

	dispatchOpts := []dispatch.Option{dispatch.WithObserver(recorder)}
	if heartbeatRegistry != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithHeartbeatReporter(heartbeatRegistry))
	}
	dispatcher := dispatch.New(
		cfg.DispatchShards,
		cfg.DispatchQueueSize,
		engine,
		logger.With("component", "dispatcher"),
		dispatchOpts...,
	)

	refresher := refresh.New(
		jiraClient,
		sqlStore,
		holder,
		cfg.JiraProjectKey,
		logger.With("component", "refresh"),
		refresh.WithObserver(recorder),
	)
	schedulerService, err := scheduler.New(
		buildJobs(cfg, refresher, stager, sqlStore),
		time.UTC,
		logger.With("component", "scheduler"),
	)
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("configure scheduler: %w", err)
	}

	var watchService *watcher.Service
	if cfg.WatchCatalog && strings.TrimSpace(cfg.CatalogPath) != "" {
		watchService, err = watcher.New(
			cfg.CatalogPath,
			holder,
			logger.With("component", "catalog-watcher"),
			catalogReloaded(sqlStore, refresher, logger.With("component", "catalog-reload")),
		)
		if err != nil {
			sqlStore.Close()
			return nil, fmt.Errorf("configure catalog watcher: %w", err)
		}
	} else if heartbeatRegistry != nil {
		heartbeatRegistry.Disabled("catalog-watcher", "catalog watch disabled")
	}

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Version:             version,
		Store:               sqlStore,
		Metrics:             recorder.Handler(),
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: time.Duration(cfg.HeartbeatStaleSec) * time.Second,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	connectorList := []connector{}
	if cfg.TelegramEnabled() {
		connectorList = append(connectorList, telegram.New(
			telegramClient,
			cfg.TelegramPoll,
			dispatcher,
			logger.With("connector", "telegram"),
			telegram.WithCommandSync(cfg.CommandSyncEnabled),
		))
	} else {
		logger.Warn("telegram token missing, no updates will be received")
		if heartbeatRegistry != nil {
			heartbeatRegistry.Disabled("connector:telegram", "token missing")
		}
	}

	runtime := &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      sqlStore,
		catalog:    holder,
		metrics:    recorder,
		dispatcher: dispatcher,
		stager:     stager,
		refresher:  refresher,
		httpServer: httpServer,
		watcher:    watchService,
		scheduler:  schedulerService,
		connectors: connectorList,
	}
	if heartbeatRegistry == nil {
		return runtime, nil
	}

	for _, aware := range runtime.heartbeatAwareComponents() {
		aware.SetHeartbeatReporter(heartbeatRegistry)
	}
	runtime.heartbeat = heartbeatRegistry
	runtime.heartbeatMonitor = heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
		Interval:   time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		StaleAfter: time.Duration(cfg.HeartbeatStaleSec) * time.Second,
		Logger:     logger.With("component", "heartbeat-monitor"),
		OnSnapshot: recorder.ObserveComponents,
	})
	return runtime, nil
}

func (r *Runtime) heartbeatAwareComponents() []heartbeatAware {
	components := []heartbeatAware{r.scheduler}
	if r.watcher != nil {
		components = append(components, r.watcher)
	}
	for _, conn := range r.connectors {
		if aware, ok := conn.(heartbeatAware); ok {
			components = append(components, aware)
		}
	}
	return components
}

func openStore(cfg config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}
	return sqlStore, nil
}

// loadCatalog reads the catalog file (falling back to the built-in default
// when it does not exist) and seeds its app versions into the store.
func loadCatalog(ctx context.Context, cfg config.Config, sqlStore *store.Store, logger *slog.Logger) (*catalog.Holder, error) {
	current, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	added, err := sqlStore.SeedAppVersions(ctx, current.AppVersions)
	if err != nil {
		return nil, fmt.Errorf("seed app versions: %w", err)
	}
	logger.Info("catalog loaded", "path", cfg.CatalogPath, "app_versions", len(current.AppVersions), "seeded", added)
	return catalog.NewHolder(current), nil
}

func ticketLocation(name string, logger *slog.Logger) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown ticket timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return location
}
