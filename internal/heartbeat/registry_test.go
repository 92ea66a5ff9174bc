package heartbeat

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotMarksStaleComponent(t *testing.T) {
	registry := NewRegistry()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return clock }
	registry.Beat("scheduler", "ok")

	clock = clock.Add(3 * time.Minute)
	snapshot := registry.Snapshot(60 * time.Second)
	if snapshot.Overall != StateDegraded {
		t.Fatalf("expected degraded overall state, got %s", snapshot.Overall)
	}
	if len(snapshot.Components) != 1 {
		t.Fatalf("expected one component, got %d", len(snapshot.Components))
	}
	if snapshot.Components[0].State != StateStale || !snapshot.Components[0].Stale {
		t.Fatalf("expected stale component state, got %+v", snapshot.Components[0])
	}
}

func TestSnapshotIdleForDisabledComponents(t *testing.T) {
	registry := NewRegistry()
	registry.Disabled("connector:telegram", "token missing")
	registry.Stopped("scheduler", "stopped")

	snapshot := registry.Snapshot(60 * time.Second)
	if snapshot.Overall != OverallIdle {
		t.Fatalf("expected idle overall state, got %s", snapshot.Overall)
	}
}

func TestComponentKeepsLastError(t *testing.T) {
	registry := NewRegistry()
	registry.Degrade("Dispatcher", "queue full", errors.New("event queue is full"))

	status, ok := registry.Component("dispatcher")
	if !ok {
		t.Fatal("expected dispatcher component")
	}
	if status.State != StateDegraded || status.Error != "event queue is full" {
		t.Fatalf("unexpected status: %+v", status)
	}

	registry.Beat("dispatcher", "event handled")
	status, _ = registry.Component("dispatcher")
	if status.State != StateHealthy || status.Error != "" {
		t.Fatalf("expected recovery to clear the error, got %+v", status)
	}
	if _, ok := registry.Component("missing"); ok {
		t.Fatal("expected unknown component to be absent")
	}
}

func TestOverallPrefersStartingOverHealthy(t *testing.T) {
	registry := NewRegistry()
	registry.Beat("dispatcher", "ok")
	registry.Starting("connector:telegram", "polling")

	if overall := registry.Snapshot(0).Overall; overall != StateStarting {
		t.Fatalf("expected starting overall state, got %s", overall)
	}
	if overall := NewRegistry().Snapshot(0).Overall; overall != OverallUnknown {
		t.Fatalf("expected unknown for empty registry, got %s", overall)
	}
}

func TestTouchKeepsStateAndMessage(t *testing.T) {
	registry := NewRegistry()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return clock }
	registry.Beat("dispatcher", "4 shards running")
	registry.Degrade("catalog-watcher", "watch failed", errors.New("no such dir"))

	clock = clock.Add(3 * time.Minute)
	registry.Touch("dispatcher")
	registry.Touch("catalog-watcher")
	registry.Touch("unknown")

	snapshot := registry.Snapshot(60 * time.Second)
	if len(snapshot.Components) != 2 {
		t.Fatalf("expected two components, got %+v", snapshot.Components)
	}
	dispatcher, _ := registry.Component("dispatcher")
	if snapshot.Components[1].Stale || dispatcher.Message != "4 shards running" {
		t.Fatalf("expected fresh dispatcher with original message, got %+v", snapshot.Components[1])
	}
	if snapshot.Components[0].State != StateDegraded {
		t.Fatalf("expected watcher to stay degraded, got %+v", snapshot.Components[0])
	}
}
