package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"fleetforge/internal/domain"
)

// ListReleases returns all releases
func (q *queries) ListReleases(ctx context.Context) ([]*domain.Release, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+releaseColumns+` FROM releases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var releases []*domain.Release
	for rows.Next() {
		var row releaseRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating releases: %w", err)
	}
	return releases, nil
}

// GetRelease retrieves a release by ID
func (q *queries) GetRelease(ctx context.Context, id int64) (*domain.Release, error) {
	return q.getReleaseWhere(ctx, `id = ?`, id)
}

// GetReleaseByNameVersion retrieves a release by its unique (name, version) pair
func (q *queries) GetReleaseByNameVersion(ctx context.Context, name, version string) (*domain.Release, error) {
	return q.getReleaseWhere(ctx, `name = ? AND version = ?`, name, version)
}

func (q *queries) getReleaseWhere(ctx context.Context, where string, args ...any) (*domain.Release, error) {
	var row releaseRow
	err := q.q.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE `+where, args...).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query release: %w", err)
	}
	return row.toDomain(), nil
}

// CreateRelease inserts a release and sets its ID
func (q *queries) CreateRelease(ctx context.Context, release *domain.Release) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO releases (name, version, description) VALUES (?, ?, ?)
	`, release.Name, release.Version, stringToNull(release.Description))
	if err != nil {
		return fmt.Errorf("failed to insert release: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read release id: %w", err)
	}
	release.ID = id
	return nil
}

// UpdateRelease writes every column of the release
func (q *queries) UpdateRelease(ctx context.Context, release *domain.Release) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE releases SET name = ?, version = ?, description = ? WHERE id = ?
	`, release.Name, release.Version, stringToNull(release.Description), release.ID)
	if err != nil {
		return fmt.Errorf("failed to update release: %w", err)
	}
	return nil
}

// DeleteRelease removes a release. Clusters using it keep running without one.
func (q *queries) DeleteRelease(ctx context.Context, id int64) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
	}
	return nil
}
