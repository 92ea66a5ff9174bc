package store

import (
	"context"
	"fmt"
	"strings"
)

type Link struct {
	Category string
	Label    string
	URL      string
}

func (s *Store) ReplaceLinks(ctx context.Context, links []Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin links tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM links`); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	for position, link := range links {
		label := strings.TrimSpace(link.Label)
		url := strings.TrimSpace(link.URL)
		if label == "" || url == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO links (category, label, url, position) VALUES (?, ?, ?, ?)`,
			strings.TrimSpace(link.Category),
			label,
			url,
			position,
		); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit links tx: %w", err)
	}
	return nil
}

func (s *Store) ListLinks(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, label, url FROM links ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var results []Link
	for rows.Next() {
		var record Link
		if err := rows.Scan(&record.Category, &record.Label, &record.URL); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		results = append(results, record)
	}
	return results, rows.Err()
}
