package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition, Snapshot)
	// OnSnapshot sees every periodic snapshot, changed or not.
	OnSnapshot   func(Snapshot)
}

// Monitor periodically snapshots the registry and reports state changes.
type Monitor struct {
	registry     *Registry
	interval     time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
	onTransition func(context.Context, Transition, Snapshot)
	onSnapshot   func(Snapshot)
	previous     map[string]string
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:     registry,
		interval:     interval,
		staleAfter:   cfg.StaleAfter,
		logger:       logger.With("component", "heartbeat"),
		onTransition: cfg.OnTransition,
		onSnapshot:   cfg.OnSnapshot,
		previous:     map[string]string{},
	}
}

func (m *Monitor) Name() string {
	return "heartbeat"
}

func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info("heartbeat monitor started", "interval", m.interval.String(), "stale_after", m.staleAfter.String())
	for {
		m.check(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	snapshot := m.registry.Snapshot(m.staleAfter)
	if m.onSnapshot != nil {
		m.onSnapshot(snapshot)
	}
	for _, status := range snapshot.Components {
		before, seen := m.previous[status.Name]
		m.previous[status.Name] = status.State
		if !seen || before == status.State {
			continue
		}
		transition := Transition{
			Component: status.Name,
			FromState: before,
			ToState:   status.State,
			Message:   status.Message,
			Error:     status.Error,
		}
		if IsDegradedState(status.State) {
			m.logger.Warn("component degraded", "name", status.Name, "from", before, "to", status.State, "error", status.Error)
		} else {
			m.logger.Info("component state changed", "name", status.Name, "from", before, "to", status.State)
		}
		if m.onTransition != nil {
			m.onTransition(ctx, transition, snapshot)
		}
	}
}
