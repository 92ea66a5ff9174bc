package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestMonitorReportsDegradeAndRecovery(t *testing.T) {
	registry := NewRegistry()
	transitions := make(chan Transition, 4)
	monitor := NewMonitor(registry, MonitorConfig{
		Interval: 10 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnTransition: func(_ context.Context, transition Transition, _ Snapshot) {
			transitions <- transition
		},
	})

	registry.Beat("dispatcher", "running")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = monitor.Start(ctx)
		close(done)
	}()
	time.Sleep(25 * time.Millisecond)

	registry.Degrade("dispatcher", "shard 0 queue full", errors.New("event queue is full"))
	select {
	case transition := <-transitions:
		if transition.FromState != StateHealthy || transition.ToState != StateDegraded {
			t.Fatalf("unexpected degrade transition: %+v", transition)
		}
		if transition.Error != "event queue is full" {
			t.Fatalf("expected error text in transition, got %+v", transition)
		}
	case <-time.After(time.Second):
		t.Fatal("expected degrade transition")
	}

	registry.Beat("dispatcher", "event handled")
	select {
	case transition := <-transitions:
		if transition.FromState != StateDegraded || transition.ToState != StateHealthy {
			t.Fatalf("unexpected recovery transition: %+v", transition)
		}
	case <-time.After(time.Second):
		t.Fatal("expected recovery transition")
	}

	cancel()
	<-done
}

func TestMonitorPublishesEverySnapshot(t *testing.T) {
	registry := NewRegistry()
	registry.Beat("api", "serving")
	var snapshots []Snapshot
	monitor := NewMonitor(registry, MonitorConfig{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnSnapshot: func(snapshot Snapshot) { snapshots = append(snapshots, snapshot) },
	})

	monitor.check(context.Background())
	monitor.check(context.Background())
	if len(snapshots) != 2 {
		t.Fatalf("expected a snapshot per check, got %d", len(snapshots))
	}
	if snapshots[0].Overall != StateHealthy || len(snapshots[0].Components) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshots[0])
	}
}
