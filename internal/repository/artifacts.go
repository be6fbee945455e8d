// Package repository provides persistence implementations for backup
// artifacts: a PostgreSQL table and a plain directory.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/lib/pq"
)

// ErrExists is returned by Put when an artifact name is already taken.
// Artifacts are immutable once written.
var ErrExists = errors.New("artifact already exists")

// PostgresArtifactRepository stores artifacts as BYTEA rows.
type PostgresArtifactRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// now stamps created_at; replaced in tests.
	now func() time.Time
}

// NewPostgresArtifactRepository creates a repository using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance with the schema from db.InitPostgres.
func NewPostgresArtifactRepository(db *sql.DB) *PostgresArtifactRepository {
	return &PostgresArtifactRepository{DB: db, now: time.Now}
}

// Put inserts a new artifact. An existing name is never overwritten.
func (r *PostgresArtifactRepository) Put(ctx context.Context, name string, data []byte) error {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO artifacts (name, data, size, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
	`, name, data, len(data), r.now().UTC())
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%q: %w", name, ErrExists)
	}
	return nil
}

// Head reports whether an artifact with the given name exists.
func (r *PostgresArtifactRepository) Head(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM artifacts WHERE name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("head artifact: %w", err)
	}
	return exists, nil
}

// Get returns the full artifact bytes, or ErrNotFound.
func (r *PostgresArtifactRepository) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT data FROM artifacts WHERE name = $1`,
		name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, berrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return data, nil
}

// List returns name and size of every artifact whose name starts with prefix,
// ordered by name.
func (r *PostgresArtifactRepository) List(ctx context.Context, prefix string) ([]models.ArtifactInfo, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT name, size, created_at FROM artifacts
		WHERE left(name, length($1)) = $1
		ORDER BY name
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []models.ArtifactInfo
	for rows.Next() {
		var info models.ArtifactInfo
		if err := rows.Scan(&info.Name, &info.Size, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// ExpiredArtifacts returns the names of artifacts created before cutoff.
func (r *PostgresArtifactRepository) ExpiredArtifacts(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name FROM artifacts WHERE created_at < $1 ORDER BY name`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("expired artifacts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteArtifacts removes the named artifacts and returns how many rows went.
func (r *PostgresArtifactRepository) DeleteArtifacts(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM artifacts WHERE name = ANY($1)`,
		pq.Array(names),
	)
	if err != nil {
		return 0, fmt.Errorf("delete artifacts: %w", err)
	}
	return res.RowsAffected()
}
