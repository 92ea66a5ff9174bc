package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrBoardNotFound = errors.New("board not found")

type Board struct {
	ID         int64
	Name       string
	ProjectKey string
	Epics      []Epic
}

type Epic struct {
	ID   int64
	Key  string
	Name string
}

// ReplaceBoards swaps the whole board catalog, epics included, in one transaction.
func (s *Store) ReplaceBoards(ctx context.Context, boards []Board) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin boards tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM epics`); err != nil {
		return fmt.Errorf("clear epics: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM boards`); err != nil {
		return fmt.Errorf("clear boards: %w", err)
	}
	nowUnix := s.now().Unix()
	for position, board := range boards {
		if board.ID == 0 || strings.TrimSpace(board.Name) == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO boards (id, name, project_key, position, refreshed_at_unix) VALUES (?, ?, ?, ?, ?)`,
			board.ID,
			strings.TrimSpace(board.Name),
			nullIfEmpty(board.ProjectKey),
			position,
			nowUnix,
		); err != nil {
			return fmt.Errorf("insert board %d: %w", board.ID, err)
		}
		for epicPosition, epic := range board.Epics {
			key := strings.TrimSpace(epic.Key)
			if key == "" {
				continue
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO epics (epic_key, board_id, epic_id, name, position) VALUES (?, ?, ?, ?, ?)`,
				key,
				board.ID,
				nullIfZeroInt64(epic.ID),
				strings.TrimSpace(epic.Name),
				epicPosition,
			); err != nil {
				return fmt.Errorf("insert epic %s: %w", key, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit boards tx: %w", err)
	}
	return nil
}

// ListBoards returns the board catalog without epics.
func (s *Store) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, project_key FROM boards ORDER BY position ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query boards: %w", err)
	}
	defer rows.Close()

	var results []Board
	for rows.Next() {
		var record Board
		var projectKey sql.NullString
		if err := rows.Scan(&record.ID, &record.Name, &projectKey); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		record.ProjectKey = projectKey.String
		results = append(results, record)
	}
	return results, rows.Err()
}

// LookupBoard returns one board with its epics.
func (s *Store) LookupBoard(ctx context.Context, id int64) (Board, error) {
	var record Board
	var projectKey sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, project_key FROM boards WHERE id = ?`,
		id,
	).Scan(&record.ID, &record.Name, &projectKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Board{}, ErrBoardNotFound
		}
		return Board{}, fmt.Errorf("select board: %w", err)
	}
	record.ProjectKey = projectKey.String

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT epic_key, epic_id, name FROM epics WHERE board_id = ? ORDER BY position ASC, epic_key ASC`,
		id,
	)
	if err != nil {
		return Board{}, fmt.Errorf("query epics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var epic Epic
		var epicID sql.NullInt64
		if err := rows.Scan(&epic.Key, &epicID, &epic.Name); err != nil {
			return Board{}, fmt.Errorf("scan epic: %w", err)
		}
		epic.ID = epicID.Int64
		record.Epics = append(record.Epics, epic)
	}
	return record, rows.Err()
}

// HasEpic reports whether the board lists the epic key.
func (b Board) HasEpic(key string) bool {
	for _, epic := range b.Epics {
		if epic.Key == key {
			return true
		}
	}
	return false
}
