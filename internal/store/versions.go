package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrVersionInvalid = errors.New("app version is invalid")

// ListAppVersions returns known versions in the order they were added.
func (s *Store) ListAppVersions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM app_versions ORDER BY revision ASC`)
	if err != nil {
		return nil, fmt.Errorf("query app versions: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan app version: %w", err)
		}
		results = append(results, version)
	}
	return results, rows.Err()
}

// AppendAppVersion adds a version unless it is already known. The insert and
// the revision bump happen in one statement, so concurrent appends never lose
// an entry. It reports whether the version was added.
func (s *Store) AppendAppVersion(ctx context.Context, version string) (bool, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return false, ErrVersionInvalid
	}
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO app_versions (version, revision, created_at_unix)
		 SELECT ?, COALESCE(MAX(revision), 0) + 1, ? FROM app_versions
		 WHERE NOT EXISTS (SELECT 1 FROM app_versions WHERE version = ?)`,
		version,
		s.now().Unix(),
		version,
	)
	if err != nil {
		return false, fmt.Errorf("append app version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read app version result: %w", err)
	}
	return affected > 0, nil
}

// CatalogRevision is the revision of the latest appended version, 0 when empty.
func (s *Store) CatalogRevision(ctx context.Context) (int64, error) {
	var revision int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(revision), 0) FROM app_versions`).Scan(&revision); err != nil {
		return 0, fmt.Errorf("select catalog revision: %w", err)
	}
	return revision, nil
}

// SeedAppVersions appends every version that is not yet known and returns how many were added.
func (s *Store) SeedAppVersions(ctx context.Context, versions []string) (int, error) {
	added := 0
	for _, version := range versions {
		if strings.TrimSpace(version) == "" {
			continue
		}
		ok, err := s.AppendAppVersion(ctx, version)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
