// Package reference loads the static country reference table: one entry
// per alpha-3 code, immutable after load, shared read-only by all queries.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gloodata/ext-go-demography/internal/domain"
)

// Country is one reference entry. All fields are plain strings as they
// appear in the source file; NumericCode keeps leading zeros.
type Country struct {
	Name          string `json:"name"`
	Alpha2        string `json:"alpha_2"`
	Alpha3        string `json:"alpha_3"`
	NumericCode   string `json:"code"`
	Region        string `json:"region"`
	SubRegion     string `json:"sub_region"`
	RegionCode    string `json:"region_code"`
	SubRegionCode string `json:"sub_region_code"`
}

// Set is the immutable loaded reference table. Construct with Load (or
// NewSet in tests) and pass by reference; there is no global instance.
type Set struct {
	byAlpha3 map[string]Country
	ordered  []Country // sorted by name
	skipped  int
}

// Load parses the reference CSV once. Rows without an alpha-3 code are
// skipped and counted (the file is static and trusted, but manual edits
// happen); a header without the alpha-3 column fails the whole load.
func Load(path string) (*Set, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied input path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	set, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return set, nil
}

// NewSet builds a Set from already-constructed entries. Intended for tests.
func NewSet(countries []Country) *Set {
	set := &Set{byAlpha3: make(map[string]Country, len(countries))}
	for _, c := range countries {
		key := strings.ToUpper(c.Alpha3)
		if _, dup := set.byAlpha3[key]; dup {
			continue
		}
		set.byAlpha3[key] = c
		set.ordered = append(set.ordered, c)
	}
	sort.Slice(set.ordered, func(i, j int) bool { return set.ordered[i].Name < set.ordered[j].Name })
	return set
}

func parse(r io.Reader) (*Set, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		key = strings.ReplaceAll(key, "_", "-")
		cols[key] = i
	}

	if _, ok := cols["alpha-3"]; !ok {
		return nil, domain.ErrMalformedReference("reference header has no alpha-3 column")
	}
	if _, ok := cols["name"]; !ok {
		return nil, domain.ErrMalformedReference("reference header has no name column")
	}

	field := func(record []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var countries []Country
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		code := field(record, "alpha-3")
		if code == "" {
			skipped++
			continue
		}

		countries = append(countries, Country{
			Name:          field(record, "name"),
			Alpha2:        field(record, "alpha-2"),
			Alpha3:        strings.ToUpper(code),
			NumericCode:   field(record, "country-code"),
			Region:        field(record, "region"),
			SubRegion:     field(record, "sub-region"),
			RegionCode:    field(record, "region-code"),
			SubRegionCode: field(record, "sub-region-code"),
		})
	}

	set := NewSet(countries)
	set.skipped = skipped
	return set, nil
}

// Len returns the number of loaded countries.
func (s *Set) Len() int { return len(s.ordered) }

// Skipped returns how many malformed rows the load dropped.
func (s *Set) Skipped() int { return s.skipped }

// Get looks up a country by alpha-3 code (case-insensitive).
func (s *Set) Get(alpha3 string) (Country, bool) {
	c, ok := s.byAlpha3[strings.ToUpper(strings.TrimSpace(alpha3))]
	return c, ok
}

// All returns every country ordered by name. Callers must not mutate the
// returned slice.
func (s *Set) All() []Country { return s.ordered }

// Lookup finds a country by name, alpha-3 or alpha-2, case-insensitively.
func (s *Set) Lookup(q string) (Country, bool) {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return Country{}, false
	}
	if c, ok := s.byAlpha3[strings.ToUpper(needle)]; ok {
		return c, ok
	}
	for _, c := range s.ordered {
		if strings.ToLower(c.Name) == needle || strings.ToLower(c.Alpha2) == needle {
			return c, true
		}
	}
	return Country{}, false
}

// CodesForRegion expands a region, sub-region or region code into the
// alpha-3 codes it contains. The match is case-insensitive. An unknown
// region yields an empty slice.
func (s *Set) CodesForRegion(region string) []string {
	needle := strings.ToLower(strings.TrimSpace(region))
	if needle == "" {
		return nil
	}
	var codes []string
	for _, c := range s.ordered {
		if strings.ToLower(c.Region) == needle ||
			strings.ToLower(c.SubRegion) == needle ||
			c.RegionCode == region ||
			c.SubRegionCode == region {
			codes = append(codes, c.Alpha3)
		}
	}
	return codes
}
