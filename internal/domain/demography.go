package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Sex is the sex discriminator attached to every normalized row.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	// SexBoth is a separately recorded series, not the sum of male+female.
	SexBoth Sex = "both"
)

// ParseSex validates a sex label. The empty string is not a valid Sex —
// absence of a filter is expressed with a nil *Sex.
func ParseSex(s string) (Sex, error) {
	switch Sex(strings.ToLower(strings.TrimSpace(s))) {
	case SexMale:
		return SexMale, nil
	case SexFemale:
		return SexFemale, nil
	case SexBoth:
		return SexBoth, nil
	default:
		return "", ErrValidation("unknown sex %q (expected male, female or both)", s)
	}
}

// Metric names recorded in the merged artifact.
const (
	MetricPopulation = "population"
	MetricFertility  = "fertility"
)

// Year coverage of the source exports. MaxYear is the default for
// point-in-time queries when the caller gives no year.
const (
	MinYear = 1950
	MaxYear = 2023
)

// AgeBandAll is the band label used when a source has no age dimension
// (per-year population totals, fertility rates).
const AgeBandAll = "all"

// NormalizedRow is one tidy-format observation: a single value for a
// (country, year, age band, sex, metric) tuple. The tuple is unique within
// the merged artifact. AgeStart is the decoded lower bound of the age band
// and exists only as an explicit sort key; it carries no information the
// band label does not.
type NormalizedRow struct {
	CountryCode string
	Year        int
	AgeBand     string
	AgeStart    int
	Sex         Sex
	Metric      string
	// Value is nil when the source cell held an explicit missing marker.
	// When present it is non-negative.
	Value *float64
}

// DecodeAgeBand decodes an age-band label into its lower bound.
// Accepted shapes: "0-4", "80+", "25", and the underscore style some
// exports use ("years_0_4", "years_65_plus").
func DecodeAgeBand(label string) (int, bool) {
	s := strings.TrimSpace(label)
	if s == "" {
		return 0, false
	}
	if s == AgeBandAll {
		return 0, true
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "years_"); ok {
		rest = strings.TrimSuffix(rest, "_plus")
		if i := strings.IndexByte(rest, '_'); i >= 0 {
			rest = rest[:i]
		}
		s = rest
	}
	s = strings.TrimSuffix(s, "+")
	if i := strings.IndexAny(s, "-–"); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DecodeYear decodes a header label that denotes a calendar year.
func DecodeYear(label string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil || n < 1000 || n > 2999 {
		return 0, false
	}
	return n, true
}

// FormatAgeBand renders a canonical band label from its bounds, e.g.
// FormatAgeBand(0, 4) == "0-4" and FormatAgeBand(65, -1) == "65+".
func FormatAgeBand(from, to int) string {
	if to < 0 {
		return fmt.Sprintf("%d+", from)
	}
	return fmt.Sprintf("%d-%d", from, to)
}
