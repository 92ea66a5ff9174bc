// Package refresh rebuilds the cached Jira catalog (boards with their epics,
// assignable contributors) and the static links list.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/jira"
	"github.com/dwizi/intakebot/internal/store"
)

var ErrNotConfigured = errors.New("jira is not configured")

type Tracker interface {
	Configured() bool
	ListBoards(ctx context.Context) ([]jira.Board, error)
	BoardProject(ctx context.Context, boardID int64) (string, error)
	ListEpics(ctx context.Context, boardID int64) ([]jira.Epic, error)
	ListAssignableUsers(ctx context.Context, projectKey string) ([]jira.User, error)
}

type Repository interface {
	ReplaceBoards(ctx context.Context, boards []store.Board) error
	ReplaceContributors(ctx context.Context, contributors []store.Contributor) error
	ReplaceLinks(ctx context.Context, links []store.Link) error
}

type CatalogSource interface {
	Get() catalog.Catalog
}

type Observer interface {
	RefreshFinished(boards, contributors, links int, err error)
}

type Result struct {
	Boards       int
	Epics        int
	Contributors int
	Links        int
	SkippedBoard int
}

type Service struct {
	tracker    Tracker
	repository Repository
	catalog    CatalogSource
	projectKey string
	observer   Observer
	logger     *slog.Logger
	mu         sync.Mutex
}

type Option func(*Service)

func WithObserver(observer Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

func New(tracker Tracker, repository Repository, catalogs CatalogSource, projectKey string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	service := &Service{
		tracker:    tracker,
		repository: repository,
		catalog:    catalogs,
		projectKey: strings.TrimSpace(projectKey),
		logger:     logger.With("component", "refresh"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Run refreshes links, then boards, then contributors. A failing part keeps
// its previous repository contents and the other parts still run. Concurrent
// calls are serialised.
func (s *Service) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Result
	var errs []error

	links, err := s.refreshLinks(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	result.Links = links

	if !s.tracker.Configured() {
		errs = append(errs, ErrNotConfigured)
	} else {
		if err := s.refreshBoards(ctx, &result); err != nil {
			errs = append(errs, err)
		}
		contributors, err := s.refreshContributors(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		result.Contributors = contributors
	}

	err = errors.Join(errs...)
	if s.observer != nil {
		s.observer.RefreshFinished(result.Boards, result.Contributors, result.Links, err)
	}
	if err != nil {
		s.logger.Warn("catalog refresh incomplete", "boards", result.Boards, "contributors", result.Contributors, "links", result.Links, "error", err)
		return result, err
	}
	s.logger.Info("catalog refreshed", "boards", result.Boards, "epics", result.Epics, "contributors", result.Contributors, "links", result.Links, "skipped_boards", result.SkippedBoard)
	return result, nil
}

// RefreshLinks replaces only the static links, for catalog file reloads.
func (s *Service) RefreshLinks(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLinks(ctx)
}

func (s *Service) refreshLinks(ctx context.Context) (int, error) {
	source := s.catalog.Get().Links
	links := make([]store.Link, 0, len(source))
	for _, link := range source {
		links = append(links, store.Link{Category: link.Category, Label: link.Label, URL: link.URL})
	}
	if err := s.repository.ReplaceLinks(ctx, links); err != nil {
		return 0, fmt.Errorf("replace links: %w", err)
	}
	return len(links), nil
}

// refreshBoards skips boards whose project cannot be resolved; a board whose
// epics fail to load is kept without epics.
func (s *Service) refreshBoards(ctx context.Context, result *Result) error {
	remote, err := s.tracker.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("list boards: %w", err)
	}
	boards := make([]store.Board, 0, len(remote))
	for _, board := range remote {
		projectKey, err := s.tracker.BoardProject(ctx, board.ID)
		if err != nil || projectKey == "" {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn("board skipped, project unavailable", "board_id", board.ID, "board", board.Name, "error", err)
			result.SkippedBoard++
			continue
		}
		item := store.Board{ID: board.ID, Name: board.Name, ProjectKey: projectKey}
		epics, err := s.tracker.ListEpics(ctx, board.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn("epics unavailable for board", "board_id", board.ID, "board", board.Name, "error", err)
		}
		for _, epic := range epics {
			if epic.Done {
				continue
			}
			item.Epics = append(item.Epics, store.Epic{ID: epic.ID, Key: epic.Key, Name: epic.Title()})
		}
		result.Epics += len(item.Epics)
		boards = append(boards, item)
	}
	if err := s.repository.ReplaceBoards(ctx, boards); err != nil {
		return fmt.Errorf("replace boards: %w", err)
	}
	result.Boards = len(boards)
	return nil
}

// refreshContributors keeps active human accounts only.
func (s *Service) refreshContributors(ctx context.Context) (int, error) {
	users, err := s.tracker.ListAssignableUsers(ctx, s.projectKey)
	if err != nil {
		return 0, fmt.Errorf("list assignable users: %w", err)
	}
	contributors := make([]store.Contributor, 0, len(users))
	for _, user := range users {
		if !user.Active || strings.TrimSpace(user.AccountID) == "" {
			continue
		}
		if user.AccountType != "" && user.AccountType != "atlassian" {
			continue
		}
		contributors = append(contributors, store.Contributor{AccountID: user.AccountID, DisplayName: user.DisplayName})
	}
	if err := s.repository.ReplaceContributors(ctx, contributors); err != nil {
		return 0, fmt.Errorf("replace contributors: %w", err)
	}
	return len(contributors), nil
}
