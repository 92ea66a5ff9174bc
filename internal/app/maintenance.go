package app

import (
	"context"
	"log/slog"

	"github.com/dwizi/intakebot/internal/config"
	"github.com/dwizi/intakebot/internal/jira"
	"github.com/dwizi/intakebot/internal/refresh"
	"github.com/dwizi/intakebot/internal/store"
)

// Maintenance backs the one-shot CLI commands. It opens the store and the
// catalog but starts nothing.
type Maintenance struct {
	store     *store.Store
	refresher *refresh.Service
}

func OpenMaintenance(cfg config.Config, logger *slog.Logger) (*Maintenance, error) {
	sqlStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	holder, err := loadCatalog(context.Background(), cfg, sqlStore, logger)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}
	refresher := refresh.New(
		jira.New(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraAPIToken),
		sqlStore,
		holder,
		cfg.JiraProjectKey,
		logger.With("component", "refresh"),
	)
	return &Maintenance{store: sqlStore, refresher: refresher}, nil
}

func (m *Maintenance) Refresh(ctx context.Context) (refresh.Result, error) {
	return m.refresher.Run(ctx)
}

func (m *Maintenance) ListFlows(ctx context.Context, limit int) ([]store.WorkflowSummary, error) {
	return m.store.ListWorkflowStates(ctx, limit)
}

func (m *Maintenance) ResetFlows(ctx context.Context) (int64, error) {
	return m.store.DeleteAllWorkflowStates(ctx)
}

func (m *Maintenance) Close() error {
	return m.store.Close()
}
