package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dwizi/intakebot/internal/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "intakebot_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func TestWorkflowStateRoundTrip(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if _, err := sqlStore.GetWorkflowState(ctx, 42); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	state := workflow.State{
		UserID:       42,
		Flow:         workflow.FlowBugReport,
		Step:         workflow.StepBugAttachments,
		OriginChatID: -100,
		ChannelName:  "qa-team",
		Username:     "alice",
		Description:  "App crashes on login",
		DeviceID:     7,
		AppVersion:   "0.0.14",
		Files:        []string{"/tmp/a.jpg", "/tmp/b.mp4"},
	}
	if err := sqlStore.PutWorkflowState(ctx, state); err != nil {
		t.Fatalf("put state: %v", err)
	}

	loaded, err := sqlStore.GetWorkflowState(ctx, 42)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if loaded.Step != workflow.StepBugAttachments || loaded.Flow != workflow.FlowBugReport {
		t.Fatalf("unexpected step/flow: %s/%s", loaded.Step, loaded.Flow)
	}
	if loaded.ChannelName != "qa-team" || loaded.OriginChatID != -100 {
		t.Fatalf("unexpected origin: %+v", loaded)
	}
	if len(loaded.Files) != 2 || loaded.Files[1] != "/tmp/b.mp4" {
		t.Fatalf("expected file order to be preserved, got %v", loaded.Files)
	}
	if loaded.StartedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
}

func TestPutWorkflowStateReplacesWholeRecord(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	first := workflow.State{UserID: 9, Flow: workflow.FlowTaskCreation, Step: workflow.StepTaskTitle, Title: "draft", BoardID: 3}
	if err := sqlStore.PutWorkflowState(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	second := workflow.State{UserID: 9, Flow: workflow.FlowTaskCreation, Step: workflow.StepTaskDescription, BoardID: 3}
	if err := sqlStore.PutWorkflowState(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	loaded, err := sqlStore.GetWorkflowState(ctx, 9)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if loaded.Title != "" {
		t.Fatalf("expected full replace to clear title, got %q", loaded.Title)
	}
	if loaded.Step != workflow.StepTaskDescription {
		t.Fatalf("expected task_description, got %s", loaded.Step)
	}
}

func TestDeleteWorkflowStateIsIdempotent(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.PutWorkflowState(ctx, workflow.State{UserID: 1, Flow: workflow.FlowBugReport, Step: workflow.StepBugDescription}); err != nil {
		t.Fatalf("put state: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := sqlStore.DeleteWorkflowState(ctx, 1); err != nil {
			t.Fatalf("delete attempt %d: %v", i, err)
		}
	}
	if _, err := sqlStore.GetWorkflowState(ctx, 1); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected state to be gone, got %v", err)
	}
}

func TestDeleteAllAndCountFlows(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	states := []workflow.State{
		{UserID: 1, Flow: workflow.FlowBugReport, Step: workflow.StepBugDescription},
		{UserID: 2, Flow: workflow.FlowBugReport, Step: workflow.StepBugDevice},
		{UserID: 3, Flow: workflow.FlowTaskCreation, Step: workflow.StepTaskBoard},
	}
	for _, state := range states {
		if err := sqlStore.PutWorkflowState(ctx, state); err != nil {
			t.Fatalf("put state %d: %v", state.UserID, err)
		}
	}

	counts, err := sqlStore.CountActiveFlows(ctx)
	if err != nil {
		t.Fatalf("count flows: %v", err)
	}
	if counts[workflow.FlowBugReport] != 2 || counts[workflow.FlowTaskCreation] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	listed, err := sqlStore.ListWorkflowStates(ctx, 10)
	if err != nil {
		t.Fatalf("list states: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 listed states, got %d", len(listed))
	}

	removed, err := sqlStore.DeleteAllWorkflowStates(ctx)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
}

func TestWorkflowStateSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.sqlite")
	ctx := context.Background()

	first, err := New(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := first.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := first.PutWorkflowState(ctx, workflow.State{UserID: 5, Flow: workflow.FlowTaskCreation, Step: workflow.StepTaskEpic, BoardID: 11, ProjectKey: "MOP"}); err != nil {
		t.Fatalf("put state: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	second, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer second.Close()
	if err := second.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate reopened: %v", err)
	}
	loaded, err := second.GetWorkflowState(ctx, 5)
	if err != nil {
		t.Fatalf("get state after reopen: %v", err)
	}
	if loaded.Step != workflow.StepTaskEpic || loaded.ProjectKey != "MOP" {
		t.Fatalf("unexpected state after reopen: %+v", loaded)
	}
}

func TestListStagedFilesCoversEveryState(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	states := []workflow.State{
		{UserID: 1, Flow: workflow.FlowBugReport, Step: workflow.StepBugUploadMore, Files: []string{"/uploads/a.jpg", "/uploads/b.mp4"}},
		{UserID: 2, Flow: workflow.FlowTaskCreation, Step: workflow.StepTaskTitle},
		{UserID: 3, Flow: workflow.FlowTaskCreation, Step: workflow.StepTaskFinalize, Files: []string{"/uploads/c.jpg"}},
	}
	for _, state := range states {
		if err := sqlStore.PutWorkflowState(ctx, state); err != nil {
			t.Fatalf("put state %d: %v", state.UserID, err)
		}
	}

	paths, err := sqlStore.ListStagedFiles(ctx)
	if err != nil {
		t.Fatalf("list staged files: %v", err)
	}
	seen := map[string]bool{}
	for _, p := range paths {
		seen[p] = true
	}
	if len(paths) != 3 || !seen["/uploads/a.jpg"] || !seen["/uploads/b.mp4"] || !seen["/uploads/c.jpg"] {
		t.Fatalf("unexpected staged files %v", paths)
	}
}
