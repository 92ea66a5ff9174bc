package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/intakebot/internal/heartbeat"
)

// component is one long-running piece of the runtime. Components that report
// their own heartbeat set selfReporting so the runner only records failures
// and keeps their last beat fresh.
type component struct {
	name          string
	beatEvery     time.Duration
	selfReporting bool
	run           func(context.Context) error
}

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("intakebot runtime starting", "addr", r.cfg.HTTPAddr, "data_dir", r.cfg.DataDir, "environment", r.cfg.Environment)
	var reporter heartbeat.Reporter
	if r.heartbeat != nil {
		reporter = r.heartbeat
		r.heartbeat.Beat("runtime", "runtime loop started")
	}
	if err := prepareFlowStates(ctx, r.store, r.cfg.ResetStatesOnStart, r.logger.With("component", "flow-recovery")); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, item := range r.components() {
		item := item
		group.Go(func() error {
			return runMonitored(groupCtx, reporter, item)
		})
	}
	if r.heartbeatMonitor != nil {
		group.Go(func() error {
			return r.heartbeatMonitor.Start(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

const keepAliveEvery = 20 * time.Second

// toucher refreshes a component's last beat without changing its state.
type toucher interface {
	Touch(component string)
}

func (r *Runtime) components() []component {
	items := []component{
		{name: "dispatcher", beatEvery: keepAliveEvery, selfReporting: true, run: r.dispatcher.Start},
		{name: "scheduler", beatEvery: keepAliveEvery, selfReporting: reportsItself(r.scheduler), run: r.scheduler.Start},
	}
	if r.watcher != nil {
		items = append(items, component{
			name:          "catalog-watcher",
			beatEvery:     keepAliveEvery,
			selfReporting: reportsItself(r.watcher),
			run:           r.watcher.Start,
		})
	}
	for _, conn := range r.connectors {
		items = append(items, component{
			name:          "connector:" + strings.ToLower(strings.TrimSpace(conn.Name())),
			selfReporting: reportsItself(conn),
			run:           conn.Start,
		})
	}
	items = append(items, component{
		name:      "api",
		beatEvery: keepAliveEvery,
		run: func(context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	})
	return items
}

func reportsItself(value any) bool {
	_, ok := value.(heartbeatAware)
	return ok
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// runMonitored runs item until it returns, mirroring its lifecycle into
// reporter. A failure while ctx is still live degrades the component.
func runMonitored(ctx context.Context, reporter heartbeat.Reporter, item component) error {
	if item.run == nil {
		return nil
	}
	if reporter == nil {
		return item.run(ctx)
	}
	if !item.selfReporting {
		reporter.Starting(item.name, "starting")
		reporter.Beat(item.name, "running")
	}

	beatCtx, stopBeats := context.WithCancel(ctx)
	if item.beatEvery > 0 {
		beat := func() { reporter.Beat(item.name, "running") }
		if item.selfReporting {
			touch, ok := reporter.(toucher)
			if !ok {
				beat = nil
			} else {
				beat = func() { touch.Touch(item.name) }
			}
		}
		if beat != nil {
			go beatUntilDone(beatCtx, beat, item.beatEvery)
		}
	}
	err := item.run(ctx)
	stopBeats()

	if err != nil && ctx.Err() == nil {
		reporter.Degrade(item.name, "component failed", err)
		return err
	}
	if !item.selfReporting {
		reporter.Stopped(item.name, "stopped")
	}
	return err
}

func beatUntilDone(ctx context.Context, beat func(), every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}
