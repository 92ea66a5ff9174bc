package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dwizi/intakebot/internal/heartbeat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New([]Job{{Name: "refresh", Spec: "every day", Run: func(context.Context) error { return nil }}}, nil, testLogger())
	if err == nil {
		t.Fatal("expected invalid cron spec to be rejected")
	}
	_, err = New([]Job{{Name: "", Spec: "@hourly", Run: func(context.Context) error { return nil }}}, nil, testLogger())
	if err == nil {
		t.Fatal("expected unnamed job to be rejected")
	}
}

func TestStartRunsJobsOnStartAndOnSchedule(t *testing.T) {
	var refreshes, purges atomic.Int32
	service, err := New([]Job{
		{
			Name:       "catalog-refresh",
			Spec:       "@every 1h",
			RunOnStart: true,
			Run: func(context.Context) error {
				refreshes.Add(1)
				return nil
			},
		},
		{
			Name: "staging-purge",
			Spec: "@every 1s",
			Run: func(context.Context) error {
				purges.Add(1)
				return nil
			},
		},
	}, time.UTC, testLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	registry := heartbeat.NewRegistry()
	service.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = service.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for purges.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected purge job to run on schedule")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	if refreshes.Load() != 1 {
		t.Fatalf("expected one start-up refresh, got %d", refreshes.Load())
	}
	status, ok := registry.Component(componentName)
	if !ok || status.State != heartbeat.StateStopped {
		t.Fatalf("expected stopped scheduler heartbeat, got %+v", status)
	}
}

func TestFailedJobDegradesHeartbeat(t *testing.T) {
	service, err := New([]Job{{
		Name:       "catalog-refresh",
		Spec:       "@every 1h",
		RunOnStart: true,
		Run:        func(context.Context) error { return errors.New("jira unavailable") },
	}}, nil, testLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	registry := heartbeat.NewRegistry()
	service.SetHeartbeatReporter(registry)

	service.runJob(context.Background(), service.jobs[0])

	status, _ := registry.Component(componentName)
	if status.State != heartbeat.StateDegraded || status.Error != "jira unavailable" {
		t.Fatalf("expected degraded heartbeat, got %+v", status)
	}
}
