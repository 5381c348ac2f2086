package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"github.com/gloodata/ext-go-demography/internal/domain"
)

// Options configures one merge run. The three population paths are
// mandatory; the fertility path is optional.
type Options struct {
	MalePath      string
	FemalePath    string
	BothPath      string
	FertilityPath string
	OutputPath    string
}

// SourceCount reports how one source contributed to the merge.
type SourceCount struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Skipped int    `json:"skipped"`
}

// Report is the observable result of a merge run, used for manual
// verification of row-count conservation.
type Report struct {
	Sources    []SourceCount `json:"sources"`
	TotalRows  int64         `json:"total_rows"`
	OutputPath string        `json:"output_path"`
}

// Merge normalizes the population sources (and the fertility file when
// given), validates that the population sources share an identical
// observation schema, and writes their union as a parquet artifact.
//
// The write is atomic from a reader's perspective: the union is staged in
// an in-memory DuckDB table, copied to a temporary file in the destination
// directory, and renamed into place only on success. On any failure the
// previous artifact is left untouched.
func Merge(ctx context.Context, opts Options, logger *slog.Logger) (*Report, error) {
	if opts.OutputPath == "" {
		return nil, domain.ErrValidation("output path is required")
	}

	type input struct {
		name string
		path string
		sex  domain.Sex
	}
	inputs := []input{
		{"male", opts.MalePath, domain.SexMale},
		{"female", opts.FemalePath, domain.SexFemale},
		{"both", opts.BothPath, domain.SexBoth},
	}

	report := &Report{OutputPath: opts.OutputPath}
	var rows []domain.NormalizedRow
	var baseline *SourceSchema
	baselineName := ""

	for _, in := range inputs {
		if in.path == "" {
			return nil, domain.ErrValidation("missing %s population file", in.name)
		}
		res, err := NormalizeFile(in.path, in.sex, domain.MetricPopulation)
		if err != nil {
			return nil, err
		}
		if baseline == nil {
			baseline, baselineName = res.Schema, in.name
		} else if !slices.Equal(baseline.Fingerprint(), res.Schema.Fingerprint()) {
			return nil, domain.ErrSchemaMismatch(
				"%s file columns %v do not match %s file columns %v",
				in.name, res.Schema.Fingerprint(), baselineName, baseline.Fingerprint())
		}
		rows = append(rows, res.Rows...)
		report.Sources = append(report.Sources, SourceCount{Name: in.name, Rows: len(res.Rows), Skipped: res.Skipped})
		logger.Info("normalized source", "source", in.name, "rows", len(res.Rows), "skipped", res.Skipped)
	}

	if opts.FertilityPath != "" {
		res, err := NormalizeFertilityFile(opts.FertilityPath)
		if err != nil {
			return nil, err
		}
		rows = append(rows, res.Rows...)
		report.Sources = append(report.Sources, SourceCount{Name: "fertility", Rows: len(res.Rows), Skipped: res.Skipped})
		logger.Info("normalized source", "source", "fertility", "rows", len(res.Rows), "skipped", res.Skipped)
	}

	total, err := writeArtifact(ctx, rows, opts.OutputPath)
	if err != nil {
		return nil, err
	}
	report.TotalRows = total

	logger.Info("merge complete", "rows", total, "artifact", opts.OutputPath)
	return report, nil
}

// writeArtifact stages the rows in DuckDB and copies them to parquet via a
// temp file + rename. Output ordering is fixed so identical inputs produce
// identical artifacts.
func writeArtifact(ctx context.Context, rows []domain.NormalizedRow, outputPath string) (int64, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return 0, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close() //nolint:errcheck

	const ddl = `CREATE TABLE demography (
		country_code VARCHAR NOT NULL,
		year INTEGER NOT NULL,
		age_band VARCHAR NOT NULL,
		age_start INTEGER NOT NULL,
		sex VARCHAR NOT NULL,
		metric VARCHAR NOT NULL,
		value DOUBLE
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin staging tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO demography VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		var value any
		if r.Value != nil {
			value = *r.Value
		}
		if _, err := stmt.ExecContext(ctx, r.CountryCode, r.Year, r.AgeBand, r.AgeStart, string(r.Sex), r.Metric, value); err != nil {
			return 0, fmt.Errorf("stage row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit staging tx: %w", err)
	}

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM demography").Scan(&total); err != nil {
		return 0, fmt.Errorf("count staged rows: %w", err)
	}
	if total != int64(len(rows)) {
		return 0, fmt.Errorf("staged %d rows, expected %d", total, len(rows))
	}

	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, ".demography-*.parquet")
	if err != nil {
		return 0, fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp artifact: %w", err)
	}

	copySQL := fmt.Sprintf(
		`COPY (SELECT * FROM demography ORDER BY metric, country_code, year, age_start, sex)
		 TO '%s' (FORMAT PARQUET)`, sqlQuote(tmpPath))
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return 0, fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return 0, fmt.Errorf("replace artifact: %w", err)
	}
	return total, nil
}

// sqlQuote escapes a string for inclusion in a single-quoted SQL literal.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
