// Package watcher reloads the catalog file when it changes on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/heartbeat"
)

const (
	componentName = "catalog-watcher"
	settleDelay   = 200 * time.Millisecond
)

// Service watches the directory holding the catalog file so that editors
// replacing the file by rename are noticed too.
type Service struct {
	path     string
	holder   *catalog.Holder
	logger   *slog.Logger
	onReload func(context.Context, catalog.Catalog)
	reporter heartbeat.Reporter
	watcher  *fsnotify.Watcher
}

func New(path string, holder *catalog.Holder, logger *slog.Logger, onReload func(context.Context, catalog.Catalog)) (*Service, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		path:     absolute,
		holder:   holder,
		logger:   logger.With("component", componentName),
		onReload: onReload,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Name() string {
	return componentName
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	if err := s.watcher.Add(filepath.Dir(s.path)); err != nil {
		s.report(func(r heartbeat.Reporter) { r.Degrade(componentName, "watch failed", err) })
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	s.logger.Info("catalog watcher started", "path", s.path)
	s.report(func(r heartbeat.Reporter) { r.Beat(componentName, "watching "+s.path) })

	// Editors emit bursts of events; reload once they settle.
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			s.report(func(r heartbeat.Reporter) { r.Stopped(componentName, "stopped") })
			s.logger.Info("catalog watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if s.relevant(event) {
				settle = time.After(settleDelay)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("file watcher error", "error", err)
		case <-settle:
			settle = nil
			s.Reload(ctx)
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// Reload parses the file and swaps it in. A broken file keeps the previous
// catalog in place.
func (s *Service) Reload(ctx context.Context) {
	next, err := catalog.Load(s.path)
	if err != nil {
		s.logger.Error("catalog reload failed, keeping previous catalog", "path", s.path, "error", err)
		s.report(func(r heartbeat.Reporter) { r.Degrade(componentName, "reload failed", err) })
		return
	}
	s.holder.Set(next)
	s.logger.Info("catalog reloaded", "path", s.path, "app_versions", len(next.AppVersions), "links", len(next.Links))
	s.report(func(r heartbeat.Reporter) { r.Beat(componentName, "catalog reloaded") })
	if s.onReload != nil {
		s.onReload(ctx, next)
	}
}

func (s *Service) report(fn func(heartbeat.Reporter)) {
	if s.reporter != nil {
		fn(s.reporter)
	}
}
