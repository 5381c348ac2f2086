package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gloodata/ext-go-demography/internal/domain"
)

// SourceResult is the output of normalizing one source file: the decoded
// schema, the tidy rows, and how many observations were skipped because a
// value cell could not be parsed.
type SourceResult struct {
	Schema  *SourceSchema // nil for tidy sources (fertility)
	Rows    []domain.NormalizedRow
	Skipped int
}

// missing markers accepted in value cells. They yield a row with a NULL
// value rather than a skip.
var missingMarkers = map[string]bool{
	"":    true,
	"..":  true,
	"...": true,
	"-":   true,
	"na":  true,
	"n/a": true,
}

// NormalizeFile reads one wide-format demographic CSV and pivots it into
// tidy rows, one per (country, year, age band) observation, all tagged with
// the declared sex and metric. The transform is pure: the input file is
// never modified.
//
// Policy for bad cells: a value that is neither numeric nor a missing
// marker skips that single observation and bumps the skip count; the rest
// of the file is still processed.
func NormalizeFile(path string, sex domain.Sex, metric string) (*SourceResult, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied input path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	res, err := normalizeWide(f, sex, metric)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", path, err)
	}
	return res, nil
}

func normalizeWide(r io.Reader, sex domain.Sex, metric string) (*SourceResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	schema, err := ParseHeader(header)
	if err != nil {
		return nil, err
	}

	res := &SourceResult{Schema: schema}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			// ragged record, cannot be pivoted against the schema
			res.Skipped += len(schema.Obs)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		code := strings.TrimSpace(record[schema.CountryCol])
		if code == "" {
			res.Skipped += len(schema.Obs)
			continue
		}

		year := 0
		if schema.YearCol >= 0 {
			year, err = strconv.Atoi(strings.TrimSpace(record[schema.YearCol]))
			if err != nil {
				res.Skipped += len(schema.Obs)
				continue
			}
		}

		for _, col := range schema.Obs {
			value, perr := parseValue(record[col.Index])
			if perr != nil {
				res.Skipped++
				continue
			}

			row := domain.NormalizedRow{
				CountryCode: code,
				Sex:         sex,
				Metric:      metric,
				Value:       value,
			}
			switch col.Kind {
			case ObsYear:
				row.Year = col.Year
				row.AgeBand = domain.AgeBandAll
			case ObsAgeBand:
				row.Year = year
				row.AgeBand = col.AgeBand
				row.AgeStart = col.AgeStart
			}
			res.Rows = append(res.Rows, row)
		}
	}
	return res, nil
}

// NormalizeFertilityFile reads the tidy fertility-rate CSV (country, year,
// rate) and maps it onto the artifact schema with metric "fertility",
// sex "both" and the all-ages band. Skip policy matches NormalizeFile.
func NormalizeFertilityFile(path string) (*SourceResult, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied input path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	res, err := normalizeFertility(f)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", path, err)
	}
	return res, nil
}

func normalizeFertility(r io.Reader) (*SourceResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	countryCol, yearCol, rateCol := -1, -1, -1
	for i, cell := range header {
		switch key := strings.ToLower(strings.TrimSpace(stripBOM(cell))); {
		case countryColumnNames[key] || key == "entity":
			if countryCol == -1 {
				countryCol = i
			}
		case key == "year":
			yearCol = i
		case key == "fertility rate" || key == "fertility" || key == "rate":
			rateCol = i
		}
	}
	if countryCol == -1 || yearCol == -1 || rateCol == -1 {
		return nil, domain.ErrSchemaMismatch("fertility header must have country, year and rate columns")
	}

	res := &SourceResult{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			res.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		code := strings.TrimSpace(record[countryCol])
		if code == "" {
			res.Skipped++
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(record[yearCol]))
		if err != nil {
			res.Skipped++
			continue
		}
		value, perr := parseValue(record[rateCol])
		if perr != nil {
			res.Skipped++
			continue
		}

		res.Rows = append(res.Rows, domain.NormalizedRow{
			CountryCode: code,
			Year:        year,
			AgeBand:     domain.AgeBandAll,
			Sex:         domain.SexBoth,
			Metric:      domain.MetricFertility,
			Value:       value,
		})
	}
	return res, nil
}

// parseValue decodes one value cell. Missing markers yield (nil, nil);
// anything else must parse as a non-negative float.
func parseValue(cell string) (*float64, error) {
	s := strings.TrimSpace(cell)
	if missingMarkers[strings.ToLower(s)] {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, domain.ErrValueParse("value %q is not numeric", cell)
	}
	if v < 0 {
		return nil, domain.ErrValueParse("value %q is negative", cell)
	}
	return &v, nil
}
