package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrContributorNotFound = errors.New("contributor not found")

type Contributor struct {
	AccountID   string
	DisplayName string
}

func (s *Store) ReplaceContributors(ctx context.Context, contributors []Contributor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contributors tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contributors`); err != nil {
		return fmt.Errorf("clear contributors: %w", err)
	}
	nowUnix := s.now().Unix()
	for _, contributor := range contributors {
		accountID := strings.TrimSpace(contributor.AccountID)
		if accountID == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO contributors (account_id, display_name, refreshed_at_unix) VALUES (?, ?, ?)`,
			accountID,
			strings.TrimSpace(contributor.DisplayName),
			nowUnix,
		); err != nil {
			return fmt.Errorf("insert contributor %s: %w", accountID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contributors tx: %w", err)
	}
	return nil
}

// ListContributors returns contributors sorted by display name.
func (s *Store) ListContributors(ctx context.Context) ([]Contributor, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT account_id, display_name FROM contributors ORDER BY display_name COLLATE NOCASE ASC, account_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query contributors: %w", err)
	}
	defer rows.Close()

	var results []Contributor
	for rows.Next() {
		var record Contributor
		if err := rows.Scan(&record.AccountID, &record.DisplayName); err != nil {
			return nil, fmt.Errorf("scan contributor: %w", err)
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

func (s *Store) LookupContributor(ctx context.Context, accountID string) (Contributor, error) {
	var record Contributor
	err := s.db.QueryRowContext(
		ctx,
		`SELECT account_id, display_name FROM contributors WHERE account_id = ?`,
		strings.TrimSpace(accountID),
	).Scan(&record.AccountID, &record.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contributor{}, ErrContributorNotFound
		}
		return Contributor{}, fmt.Errorf("select contributor: %w", err)
	}
	return record, nil
}
