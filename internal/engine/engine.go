// Package engine provides the DuckDB handle over the merged demography
// artifact. The artifact is exposed as a view over read_parquet, so every
// query scans the file that is currently at the configured path — replacing
// the artifact by rename is picked up without restarting.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"github.com/gloodata/ext-go-demography/internal/domain"
)

// Engine wraps an in-process DuckDB connection bound to one artifact path.
// It is safe for concurrent use; the artifact is read-only at query time.
type Engine struct {
	db           *sql.DB
	artifactPath string
	logger       *slog.Logger

	mu       sync.Mutex
	attached bool
}

// Open creates an Engine for the artifact at the given path. The artifact
// does not have to exist yet — attachment is retried on first use, so the
// server can start before the merge pipeline has ever run.
func Open(artifactPath string, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Engine{db: db, artifactPath: artifactPath, logger: logger}, nil
}

// Close releases the DuckDB connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// ArtifactPath returns the configured artifact location.
func (e *Engine) ArtifactPath() string {
	return e.artifactPath
}

// Query runs a read query against the demography view.
// Returns ArtifactNotFoundError when the merge pipeline has never produced
// an artifact at the configured path.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := e.ensureAttached(ctx); err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return rows, nil
}

func (e *Engine) ensureAttached(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attached {
		return nil
	}

	if _, err := os.Stat(e.artifactPath); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrArtifactNotFound(e.artifactPath)
		}
		return fmt.Errorf("stat artifact: %w", err)
	}

	ddl := fmt.Sprintf(
		`CREATE OR REPLACE VIEW demography AS
		 SELECT country_code, year, age_band, age_start, sex, metric, value
		 FROM read_parquet('%s')`, sqlQuote(e.artifactPath))
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("attach artifact: %w", err)
	}

	e.attached = true
	e.logger.Info("artifact attached", "path", e.artifactPath)
	return nil
}

// sqlQuote escapes a string for inclusion in a single-quoted SQL literal.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
