// Package pipeline implements the offline CSV-to-parquet merge pipeline:
// wide-format demographic exports are pivoted into tidy rows and unioned
// into a single columnar artifact.
package pipeline

import (
	"sort"
	"strings"

	"github.com/gloodata/ext-go-demography/internal/domain"
)

// ObsKind says what a wide-format observation column represents.
type ObsKind int

const (
	// ObsYear marks a column holding one value per calendar year.
	ObsYear ObsKind = iota
	// ObsAgeBand marks a column holding one value per age band.
	ObsAgeBand
)

// ObsColumn is one observation column decoded from a wide-format header.
type ObsColumn struct {
	Index    int
	Label    string // header cell as written (trimmed)
	Kind     ObsKind
	Year     int    // set when Kind == ObsYear
	AgeBand  string // canonical band label, set when Kind == ObsAgeBand
	AgeStart int    // decoded lower bound, set when Kind == ObsAgeBand
}

// SourceSchema is the typed description of a wide-format header, built in
// the first phase of a load. The second phase pivots data rows against it.
type SourceSchema struct {
	CountryCol int
	YearCol    int // -1 when the file has no year column
	Obs        []ObsColumn
}

// Fingerprint returns the sorted observation-column labels. Two sources are
// union-compatible when their fingerprints are equal.
func (s *SourceSchema) Fingerprint() []string {
	labels := make([]string, len(s.Obs))
	for i, c := range s.Obs {
		labels[i] = strings.ToLower(c.Label)
	}
	sort.Strings(labels)
	return labels
}

var countryColumnNames = map[string]bool{
	"code":         true,
	"country":      true,
	"country code": true,
	"country_code": true,
	"alpha_3":      true,
	"alpha-3":      true,
	"iso3":         true,
}

// ParseHeader decodes a wide-format header into a SourceSchema.
// The country column is mandatory. Every remaining column must decode as
// either a year or an age band; a header mixing the two kinds, or carrying
// a column that is neither, is structurally incompatible with the pipeline.
func ParseHeader(header []string) (*SourceSchema, error) {
	schema := &SourceSchema{CountryCol: -1, YearCol: -1}

	for i, cell := range header {
		label := strings.TrimSpace(stripBOM(cell))
		key := strings.ToLower(label)

		switch {
		case countryColumnNames[key]:
			if schema.CountryCol == -1 {
				schema.CountryCol = i
			}
		case key == "year":
			schema.YearCol = i
		default:
			col, ok := decodeObsColumn(i, label)
			if !ok {
				return nil, domain.ErrSchemaMismatch("unrecognized column %q in header", label)
			}
			schema.Obs = append(schema.Obs, col)
		}
	}

	if schema.CountryCol == -1 {
		return nil, domain.ErrSchemaMismatch("header has no country column")
	}
	if len(schema.Obs) == 0 {
		return nil, domain.ErrSchemaMismatch("header has no observation columns")
	}

	kind := schema.Obs[0].Kind
	for _, c := range schema.Obs[1:] {
		if c.Kind != kind {
			return nil, domain.ErrSchemaMismatch("header mixes year and age-band columns")
		}
	}
	if kind == ObsAgeBand && schema.YearCol == -1 {
		return nil, domain.ErrSchemaMismatch("age-band file requires a year column")
	}

	return schema, nil
}

func decodeObsColumn(index int, label string) (ObsColumn, bool) {
	if year, ok := domain.DecodeYear(label); ok {
		return ObsColumn{Index: index, Label: label, Kind: ObsYear, Year: year}, true
	}
	if start, ok := domain.DecodeAgeBand(label); ok {
		return ObsColumn{
			Index:    index,
			Label:    label,
			Kind:     ObsAgeBand,
			AgeBand:  canonicalBand(label),
			AgeStart: start,
		}, true
	}
	return ObsColumn{}, false
}

// canonicalBand rewrites underscore-style band labels ("years_0_4",
// "years_65_plus") into the display form ("0-4", "65+"). Labels already in
// display form pass through unchanged.
func canonicalBand(label string) string {
	s := strings.TrimSpace(label)
	lower := strings.ToLower(s)
	rest, ok := strings.CutPrefix(lower, "years_")
	if !ok {
		return s
	}
	if head, found := strings.CutSuffix(rest, "_plus"); found {
		return head + "+"
	}
	return strings.ReplaceAll(rest, "_", "-")
}

const utf8BOM = "\ufeff"

// stripBOM removes a UTF-8 byte-order mark from the first header cell.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, utf8BOM)
}
