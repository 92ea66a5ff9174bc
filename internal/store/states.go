package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/intakebot/internal/intakeerr"
	"github.com/dwizi/intakebot/internal/workflow"
)

var ErrStateNotFound = errors.New("workflow state not found")

// GetWorkflowState returns the persisted state for a user, or ErrStateNotFound.
func (s *Store) GetWorkflowState(ctx context.Context, userID int64) (workflow.State, error) {
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT payload_json FROM workflow_states WHERE user_id = ?`,
		userID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.State{}, ErrStateNotFound
		}
		return workflow.State{}, fmt.Errorf("select workflow state: %w: %w", intakeerr.ErrStoreUnavailable, err)
	}
	var state workflow.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return workflow.State{}, fmt.Errorf("decode workflow state: %w", err)
	}
	state.UserID = userID
	return state, nil
}

// PutWorkflowState fully replaces the state stored for state.UserID.
func (s *Store) PutWorkflowState(ctx context.Context, state workflow.State) error {
	if state.UserID == 0 {
		return errors.New("workflow state user id is required")
	}
	now := s.now()
	if state.StartedAt.IsZero() {
		state.StartedAt = now
	}
	state.UpdatedAt = now
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode workflow state: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO workflow_states (user_id, flow_kind, step, payload_json, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			flow_kind = excluded.flow_kind,
			step = excluded.step,
			payload_json = excluded.payload_json,
			updated_at_unix = excluded.updated_at_unix`,
		state.UserID,
		string(state.Flow),
		string(state.Step),
		string(payload),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert workflow state: %w: %w", intakeerr.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteWorkflowState removes a user's state. Deleting a missing state is not an error.
func (s *Store) DeleteWorkflowState(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_states WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete workflow state: %w: %w", intakeerr.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) DeleteAllWorkflowStates(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workflow_states`)
	if err != nil {
		return 0, fmt.Errorf("delete workflow states: %w: %w", intakeerr.ErrStoreUnavailable, err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

type WorkflowSummary struct {
	UserID    int64
	Flow      workflow.FlowKind
	Step      workflow.Step
	UpdatedAt int64
}

func (s *Store) ListWorkflowStates(ctx context.Context, limit int) ([]WorkflowSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT user_id, flow_kind, step, updated_at_unix
		 FROM workflow_states
		 ORDER BY updated_at_unix DESC, user_id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query workflow states: %w", err)
	}
	defer rows.Close()

	var results []WorkflowSummary
	for rows.Next() {
		var record WorkflowSummary
		var flow, step string
		if err := rows.Scan(&record.UserID, &flow, &step, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow state: %w", err)
		}
		record.Flow = workflow.FlowKind(strings.TrimSpace(flow))
		record.Step = workflow.Step(strings.TrimSpace(step))
		results = append(results, record)
	}
	return results, rows.Err()
}

// ListStagedFiles returns every staged file path referenced by a stored state.
func (s *Store) ListStagedFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload_json FROM workflow_states`)
	if err != nil {
		return nil, fmt.Errorf("query staged files: %w: %w", intakeerr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan workflow state: %w", err)
		}
		var state workflow.State
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			return nil, fmt.Errorf("decode workflow state: %w", err)
		}
		paths = append(paths, state.Files...)
	}
	return paths, rows.Err()
}

// CountActiveFlows returns the number of stored states per flow kind.
func (s *Store) CountActiveFlows(ctx context.Context) (map[workflow.FlowKind]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT flow_kind, COUNT(*) FROM workflow_states WHERE step <> '' GROUP BY flow_kind`,
	)
	if err != nil {
		return nil, fmt.Errorf("count workflow states: %w", err)
	}
	defer rows.Close()

	counts := map[workflow.FlowKind]int{}
	for rows.Next() {
		var flow string
		var count int
		if err := rows.Scan(&flow, &count); err != nil {
			return nil, fmt.Errorf("scan workflow count: %w", err)
		}
		counts[workflow.FlowKind(flow)] = count
	}
	return counts, rows.Err()
}
