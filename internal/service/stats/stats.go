// Package stats is the query library: a fixed set of parameterized
// analytical queries over the merged demography artifact. Every query is a
// pure read — results are computed per call, nothing is cached or mutated.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gloodata/ext-go-demography/internal/domain"
	"github.com/gloodata/ext-go-demography/internal/engine"
	"github.com/gloodata/ext-go-demography/internal/reference"
)

// Service bundles the engine handle and the immutable country reference.
// Safe for concurrent use.
type Service struct {
	eng    *engine.Engine
	ref    *reference.Set
	logger *slog.Logger
}

// New creates a stats Service.
func New(eng *engine.Engine, ref *reference.Set, logger *slog.Logger) *Service {
	return &Service{eng: eng, ref: ref, logger: logger}
}

// Params is the request-scoped filter set shared by the analytical queries.
// Empty filters mean no restriction. Countries takes precedence over
// Region; Region is expanded against the country reference.
type Params struct {
	Countries []string
	Region    string
	YearFrom  *int
	YearTo    *int
	AgeFrom   *int
	AgeTo     *int
	Sex       *domain.Sex
}

// Validate rejects inverted ranges and unknown sex labels. The HTTP facade
// validates too, but the library is callable directly (tests, other hosts)
// and must not trust its caller.
func (p *Params) Validate() error {
	if p.YearFrom != nil && p.YearTo != nil && *p.YearFrom > *p.YearTo {
		return domain.ErrValidation("year range [%d, %d] is inverted", *p.YearFrom, *p.YearTo)
	}
	if p.AgeFrom != nil && p.AgeTo != nil && *p.AgeFrom > *p.AgeTo {
		return domain.ErrValidation("age range [%d, %d] is inverted", *p.AgeFrom, *p.AgeTo)
	}
	if p.Sex != nil {
		if _, err := domain.ParseSex(string(*p.Sex)); err != nil {
			return err
		}
	}
	return nil
}

// YearValue is one aggregated observation per year.
type YearValue struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// PyramidRow is one (age band, sex) cell of a population pyramid.
type PyramidRow struct {
	AgeBand  string  `json:"age_band"`
	AgeStart int     `json:"age_start"`
	Sex      string  `json:"sex"`
	Value    float64 `json:"value"`
}

// CountryValue is one aggregated observation per country.
type CountryValue struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// PopulationByYear sums population per year under the given filters,
// ordered by year ascending. Series for different sexes are separate
// recorded rows; with no sex filter they are summed, "both" included.
func (s *Service) PopulationByYear(ctx context.Context, p Params) ([]YearValue, error) {
	return s.byYear(ctx, domain.MetricPopulation, p)
}

// FertilityTrend sums the fertility metric per year for a country or
// region, ordered by year ascending.
func (s *Service) FertilityTrend(ctx context.Context, p Params) ([]YearValue, error) {
	return s.byYear(ctx, domain.MetricFertility, p)
}

func (s *Service) byYear(ctx context.Context, metric string, p Params) ([]YearValue, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	q, args, empty := s.buildQuery(
		"SELECT year, SUM(value) AS total", "GROUP BY year ORDER BY year", metric, p, nil)
	if empty {
		return []YearValue{}, nil
	}

	rows, err := s.eng.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []YearValue{}
	for rows.Next() {
		var v YearValue
		if err := rows.Scan(&v.Year, &v.Value); err != nil {
			return nil, fmt.Errorf("scan year row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PopulationPyramid groups population by (age band, sex) for one year and
// country/region, ordered by the decoded band lower bound ascending.
func (s *Service) PopulationPyramid(ctx context.Context, p Params, year int) ([]PyramidRow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	q, args, empty := s.buildQuery(
		"SELECT age_band, age_start, sex, SUM(value) AS total",
		"GROUP BY age_band, age_start, sex ORDER BY age_start, age_band, sex",
		domain.MetricPopulation, p, &year)
	if empty {
		return []PyramidRow{}, nil
	}

	rows, err := s.eng.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []PyramidRow{}
	for rows.Next() {
		var v PyramidRow
		if err := rows.Scan(&v.AgeBand, &v.AgeStart, &v.Sex, &v.Value); err != nil {
			return nil, fmt.Errorf("scan pyramid row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FertilityByCountry sums the fertility metric per country for one year,
// enriched with country names from the reference, ordered by code.
func (s *Service) FertilityByCountry(ctx context.Context, year int) ([]CountryValue, error) {
	const q = `SELECT country_code, SUM(value) AS total FROM demography
		WHERE metric = ? AND value IS NOT NULL AND year = ?
		GROUP BY country_code ORDER BY country_code`

	rows, err := s.eng.Query(ctx, q, domain.MetricFertility, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []CountryValue{}
	for rows.Next() {
		var v CountryValue
		if err := rows.Scan(&v.Code, &v.Value); err != nil {
			return nil, fmt.Errorf("scan country row: %w", err)
		}
		if c, ok := s.ref.Get(v.Code); ok {
			v.Name = c.Name
		} else {
			v.Name = v.Code
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Countries lists the reference table ordered by name.
func (s *Service) Countries() []reference.Country {
	return s.ref.All()
}

// CountryInfo resolves a country by code or name (case-insensitive).
func (s *Service) CountryInfo(q string) (reference.Country, error) {
	c, ok := s.ref.Lookup(q)
	if !ok {
		return reference.Country{}, domain.ErrNotFound("unknown country %q", q)
	}
	return c, nil
}

// buildQuery assembles a filtered aggregate over the demography view.
// NULL values are excluded from sums explicitly. Returns empty=true when a
// region filter expands to no countries — that must yield an empty result,
// not an unrestricted one.
func (s *Service) buildQuery(selectClause, tailClause, metric string, p Params, year *int) (string, []any, bool) {
	var b strings.Builder
	args := []any{metric}

	b.WriteString(selectClause)
	b.WriteString(" FROM demography WHERE metric = ? AND value IS NOT NULL")

	codes := make([]string, 0, len(p.Countries))
	for _, c := range p.Countries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 && p.Region != "" {
		codes = s.ref.CodesForRegion(p.Region)
		if len(codes) == 0 {
			return "", nil, true
		}
	}
	if len(codes) > 0 {
		b.WriteString(" AND country_code IN (")
		b.WriteString(placeholders(len(codes)))
		b.WriteString(")")
		for _, c := range codes {
			args = append(args, c)
		}
	}

	if p.Sex != nil {
		b.WriteString(" AND sex = ?")
		args = append(args, string(*p.Sex))
	}
	if year != nil {
		b.WriteString(" AND year = ?")
		args = append(args, *year)
	}
	if p.YearFrom != nil {
		b.WriteString(" AND year >= ?")
		args = append(args, *p.YearFrom)
	}
	if p.YearTo != nil {
		b.WriteString(" AND year <= ?")
		args = append(args, *p.YearTo)
	}
	if p.AgeFrom != nil {
		b.WriteString(" AND age_start >= ?")
		args = append(args, *p.AgeFrom)
	}
	if p.AgeTo != nil {
		b.WriteString(" AND age_start <= ?")
		args = append(args, *p.AgeTo)
	}

	b.WriteString(" ")
	b.WriteString(tailClause)
	return b.String(), args, false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
