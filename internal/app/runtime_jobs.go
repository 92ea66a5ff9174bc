package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/config"
	"github.com/dwizi/intakebot/internal/refresh"
	"github.com/dwizi/intakebot/internal/scheduler"
)

type catalogRefresher interface {
	Run(ctx context.Context) (refresh.Result, error)
	RefreshLinks(ctx context.Context) (int, error)
}

type stagingPurger interface {
	Purge(ctx context.Context, olderThan time.Duration, keep []string) (int, error)
}

type stagedFileLister interface {
	ListStagedFiles(ctx context.Context) ([]string, error)
}

type appVersionSeeder interface {
	SeedAppVersions(ctx context.Context, versions []string) (int, error)
}

func buildJobs(cfg config.Config, refresher catalogRefresher, purger stagingPurger, inUse stagedFileLister) []scheduler.Job {
	var jobs []scheduler.Job
	if spec := strings.TrimSpace(cfg.RefreshSchedule); spec != "" {
		jobs = append(jobs, scheduler.Job{
			Name:       "catalog-refresh",
			Spec:       spec,
			RunOnStart: cfg.RefreshOnStart,
			Run: func(ctx context.Context) error {
				_, err := refresher.Run(ctx)
				if onlyNotConfigured(err) {
					return nil
				}
				return err
			},
		})
	}
	if spec := strings.TrimSpace(cfg.PurgeSchedule); spec != "" && cfg.StagingMaxAgeMin > 0 {
		maxAge := time.Duration(cfg.StagingMaxAgeMin) * time.Minute
		jobs = append(jobs, scheduler.Job{
			Name: "staging-purge",
			Spec: spec,
			Run: func(ctx context.Context) error {
				keep, err := inUse.ListStagedFiles(ctx)
				if err != nil {
					return fmt.Errorf("list staged files in use: %w", err)
				}
				_, err = purger.Purge(ctx, maxAge, keep)
				return err
			},
		})
	}
	return jobs
}

// onlyNotConfigured reports whether err carries nothing but
// refresh.ErrNotConfigured. Without Jira the links still refresh, and that
// alone is not a failed run.
func onlyNotConfigured(err error) bool {
	if err == nil {
		return false
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return errors.Is(err, refresh.ErrNotConfigured)
	}
	for _, inner := range joined.Unwrap() {
		if !errors.Is(inner, refresh.ErrNotConfigured) {
			return false
		}
	}
	return true
}

// catalogReloaded seeds new app versions and republishes static links after
// the catalog file changed on disk.
func catalogReloaded(seeder appVersionSeeder, refresher catalogRefresher, logger *slog.Logger) func(context.Context, catalog.Catalog) {
	return func(ctx context.Context, next catalog.Catalog) {
		added, err := seeder.SeedAppVersions(ctx, next.AppVersions)
		if err != nil {
			logger.Error("seed app versions failed", "error", err)
		} else if added > 0 {
			logger.Info("app versions added from catalog", "added", added)
		}
		links, err := refresher.RefreshLinks(ctx)
		if err != nil {
			logger.Error("refresh links failed", "error", err)
			return
		}
		logger.Info("links republished", "links", links)
	}
}
