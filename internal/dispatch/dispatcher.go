// Package dispatch serialises inbound chat events per user. Each user is
// pinned to one shard by hashing the user id; a shard is a single goroutine
// draining a bounded queue, so one user's events run in arrival order while
// different users proceed in parallel.
package dispatch

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/wizard"
)

var ErrQueueFull = errors.New("event queue is full")

const componentName = "dispatcher"

type Handler interface {
	Handle(ctx context.Context, event wizard.Event) error
}

// Observer is notified about queue activity, typically for metrics.
type Observer interface {
	EventQueued(shard int)
	EventRejected(shard int)
	EventHandled(shard int, duration time.Duration, err error)
}

type Option func(*Dispatcher)

func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		if observer != nil {
			d.observer = observer
		}
	}
}

func WithHeartbeatReporter(reporter heartbeat.Reporter) Option {
	return func(d *Dispatcher) {
		d.reporter = reporter
	}
}

type Dispatcher struct {
	shards    []chan wizard.Event
	handler   Handler
	logger    *slog.Logger
	observer  Observer
	reporter  heartbeat.Reporter
	startOnce sync.Once
}

func New(shardCount, queueSize int, handler Handler, logger *slog.Logger, opts ...Option) *Dispatcher {
	if shardCount < 1 {
		shardCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	shards := make([]chan wizard.Event, shardCount)
	for index := range shards {
		shards[index] = make(chan wizard.Event, queueSize)
	}
	d := &Dispatcher{
		shards:   shards,
		handler:  handler,
		logger:   logger.With("component", componentName),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Name() string {
	return componentName
}

// Start runs one worker per shard until ctx is cancelled. Events still queued
// at shutdown are dropped; their users can resume from the stored state.
func (d *Dispatcher) Start(ctx context.Context) error {
	var workers sync.WaitGroup
	d.startOnce.Do(func() {
		for index := range d.shards {
			workers.Add(1)
			go func(shard int) {
				defer workers.Done()
				d.worker(ctx, shard)
			}(index)
		}
		d.report(func(r heartbeat.Reporter) {
			r.Beat(componentName, strconv.Itoa(len(d.shards))+" shards running")
		})
	})

	<-ctx.Done()
	workers.Wait()
	d.report(func(r heartbeat.Reporter) { r.Stopped(componentName, "dispatcher stopped") })
	return nil
}

// Enqueue assigns an id when missing and queues the event on its user's shard.
// It never blocks: a full shard returns ErrQueueFull.
func (d *Dispatcher) Enqueue(event wizard.Event) (wizard.Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	shard := d.ShardFor(event.UserID)

	select {
	case d.shards[shard] <- event:
		d.observer.EventQueued(shard)
		d.logger.Debug("event queued", "event_id", event.ID, "user_id", event.UserID, "shard", shard)
		return event, nil
	default:
		d.observer.EventRejected(shard)
		d.logger.Warn("event rejected, queue full", "event_id", event.ID, "user_id", event.UserID, "shard", shard)
		d.report(func(r heartbeat.Reporter) {
			r.Degrade(componentName, "shard "+strconv.Itoa(shard)+" queue full", ErrQueueFull)
		})
		return wizard.Event{}, ErrQueueFull
	}
}

// ShardFor returns the shard index serving userID.
func (d *Dispatcher) ShardFor(userID int64) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(hasher.Sum32() % uint32(len(d.shards)))
}

func (d *Dispatcher) worker(ctx context.Context, shard int) {
	d.logger.Info("shard worker started", "shard", shard)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shard worker stopped", "shard", shard)
			return
		case event := <-d.shards[shard]:
			d.process(ctx, shard, event)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, shard int, event wizard.Event) {
	started := time.Now()
	err := d.handler.Handle(ctx, event)
	elapsed := time.Since(started)
	d.observer.EventHandled(shard, elapsed, err)
	if err != nil {
		d.logger.Error("event handling failed", "event_id", event.ID, "user_id", event.UserID, "shard", shard, "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	d.logger.Debug("event handled", "event_id", event.ID, "user_id", event.UserID, "shard", shard, "duration_ms", elapsed.Milliseconds())
	d.report(func(r heartbeat.Reporter) { r.Beat(componentName, "event handled") })
}

func (d *Dispatcher) report(fn func(heartbeat.Reporter)) {
	if d.reporter != nil {
		fn(d.reporter)
	}
}

type noopObserver struct{}

func (noopObserver) EventQueued(int) {}
func (noopObserver) EventRejected(int) {}
func (noopObserver) EventHandled(int, time.Duration, error) {}
