package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/config"
	"github.com/dwizi/intakebot/internal/dispatch"
	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/media"
	"github.com/dwizi/intakebot/internal/metrics"
	"github.com/dwizi/intakebot/internal/refresh"
	"github.com/dwizi/intakebot/internal/scheduler"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            *store.Store
	catalog          *catalog.Holder
	metrics          *metrics.Recorder
	dispatcher       *dispatch.Dispatcher
	stager           *media.Stager
	refresher        *refresh.Service
	httpServer       *http.Server
	watcher          *watcher.Service
	scheduler        *scheduler.Service
	connectors       []connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

// connector receives chat updates until ctx is cancelled.
type connector interface {
	Name() string
	Start(ctx context.Context) error
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
