package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwizi/intakebot/internal/workflow"
)

type flowStateStore interface {
	DeleteAllWorkflowStates(ctx context.Context) (int64, error)
	CountActiveFlows(ctx context.Context) (map[workflow.FlowKind]int, error)
}

// prepareFlowStates runs before updates are consumed. Flows survive restarts
// unless reset is set, in which case every stored state is dropped.
func prepareFlowStates(ctx context.Context, states flowStateStore, reset bool, logger *slog.Logger) error {
	if reset {
		removed, err := states.DeleteAllWorkflowStates(ctx)
		if err != nil {
			return fmt.Errorf("reset workflow states: %w", err)
		}
		logger.Info("workflow states reset on start", "removed", removed)
		return nil
	}
	counts, err := states.CountActiveFlows(ctx)
	if err != nil {
		return fmt.Errorf("count workflow states: %w", err)
	}
	logger.Info(
		"resuming workflow states",
		"bug_report", counts[workflow.FlowBugReport],
		"task_creation", counts[workflow.FlowTaskCreation],
	)
	return nil
}
