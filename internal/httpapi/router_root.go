package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/intakebot/internal/config"
	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

type Store interface {
	Ping(ctx context.Context) error
	CountActiveFlows(ctx context.Context) (map[workflow.FlowKind]int, error)
	ListWorkflowStates(ctx context.Context, limit int) ([]store.WorkflowSummary, error)
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Store               Store
	Metrics             http.Handler
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.handleStatusPage)
	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.HandleFunc("GET /readyz", rt.handleReady)
	mux.HandleFunc("GET /api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("GET /api/v1/info", rt.handleInfo)
	mux.HandleFunc("GET /api/v1/flows", rt.handleFlows)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
