package stats

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gloodata/ext-go-demography/internal/domain"
	"github.com/gloodata/ext-go-demography/internal/engine"
	"github.com/gloodata/ext-go-demography/internal/reference"
)

var (
	fixtureCountries = []string{"ESP", "FRA", "ITA"}
	fixtureYears     = []int{2000, 2001}
	fixtureBands     = []struct {
		band  string
		start int
	}{{"0-4", 0}, {"5-14", 5}, {"15-24", 15}, {"65+", 65}}
	fixtureSexes = []struct {
		sex  string
		base int
	}{{"male", 1}, {"female", 2}, {"both", 3}}
)

// fixtureValue encodes (sex, country, year, band) into a distinct value so
// expected aggregates can be computed by hand in the assertions below.
func fixtureValue(sexBase, countryIdx, yearIdx, bandIdx int) float64 {
	return float64(sexBase*1000 + countryIdx*100 + yearIdx*10 + bandIdx)
}

// newTestService builds a 72-row population artifact (3 countries x 2 years
// x 4 bands x 3 sexes), a few fertility rows and one NULL population row,
// then wires a Service over it.
func newTestService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demography.parquet")

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	_, err = db.Exec(`CREATE TABLE staging (
		country_code VARCHAR, year INTEGER, age_band VARCHAR, age_start INTEGER,
		sex VARCHAR, metric VARCHAR, value DOUBLE)`)
	require.NoError(t, err)

	ins, err := db.Prepare("INSERT INTO staging VALUES (?, ?, ?, ?, ?, ?, ?)")
	require.NoError(t, err)
	defer ins.Close() //nolint:errcheck

	for ci, country := range fixtureCountries {
		for yi, year := range fixtureYears {
			for bi, b := range fixtureBands {
				for _, s := range fixtureSexes {
					_, err = ins.Exec(country, year, b.band, b.start, s.sex,
						domain.MetricPopulation, fixtureValue(s.base, ci, yi, bi))
					require.NoError(t, err)
				}
			}
		}
	}

	// NULL observations are stored but must never contribute to sums.
	_, err = ins.Exec("ESP", 2000, "0-4", 0, "male", domain.MetricPopulation, nil)
	require.NoError(t, err)

	for _, f := range []struct {
		country string
		year    int
		rate    float64
	}{{"ESP", 2000, 1.2}, {"ESP", 2001, 1.1}, {"FRA", 2000, 1.9}} {
		_, err = ins.Exec(f.country, f.year, domain.AgeBandAll, 0, string(domain.SexBoth),
			domain.MetricFertility, f.rate)
		require.NoError(t, err)
	}

	_, err = db.Exec(fmt.Sprintf("COPY staging TO '%s' (FORMAT PARQUET)", path))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Open(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	ref := reference.NewSet([]reference.Country{
		{Name: "Spain", Alpha2: "ES", Alpha3: "ESP", Region: "Europe", SubRegion: "Southern Europe"},
		{Name: "France", Alpha2: "FR", Alpha3: "FRA", Region: "Europe", SubRegion: "Western Europe"},
		{Name: "Italy", Alpha2: "IT", Alpha3: "ITA", Region: "Europe", SubRegion: "Southern Europe"},
		{Name: "Japan", Alpha2: "JP", Alpha3: "JPN", Region: "Asia", SubRegion: "Eastern Asia"},
	})
	return New(eng, ref, logger)
}

func TestPopulationByYear_SingleCountry(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.PopulationByYear(context.Background(), Params{Countries: []string{"esp"}})
	require.NoError(t, err)

	// One row per year; each is the male+female+both sum over all bands.
	// Per sex and year: 4*base*1000 + 4*yearIdx*10 + (0+1+2+3).
	assert.Equal(t, []YearValue{
		{Year: 2000, Value: 24018},
		{Year: 2001, Value: 24138},
	}, got)
}

func TestPopulationByYear_AllCountries(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.PopulationByYear(context.Background(), Params{})
	require.NoError(t, err)

	// Per year: sum of sexBase*1000 over 36 rows (72000), countryIdx*100
	// over 36 rows (3600), yearIdx*10 (0 or 360) and bandIdx (54).
	assert.Equal(t, []YearValue{
		{Year: 2000, Value: 75654},
		{Year: 2001, Value: 76014},
	}, got)
}

func TestPopulationByYear_SexFilter(t *testing.T) {
	svc := newTestService(t)

	sex := domain.SexMale
	got, err := svc.PopulationByYear(context.Background(),
		Params{Countries: []string{"ESP"}, Sex: &sex})
	require.NoError(t, err)

	// The NULL male ESP/2000 row is excluded from the sum.
	assert.Equal(t, []YearValue{
		{Year: 2000, Value: 4006},
		{Year: 2001, Value: 4046},
	}, got)
}

func TestPopulationByYear_SinglePointYearRange(t *testing.T) {
	svc := newTestService(t)

	year := 2000
	got, err := svc.PopulationByYear(context.Background(),
		Params{Countries: []string{"ESP"}, YearFrom: &year, YearTo: &year})
	require.NoError(t, err)
	assert.Equal(t, []YearValue{{Year: 2000, Value: 24018}}, got)
}

func TestPopulationByYear_AgeFilter(t *testing.T) {
	svc := newTestService(t)

	sex := domain.SexMale
	ageFrom := 15
	got, err := svc.PopulationByYear(context.Background(),
		Params{Countries: []string{"ESP"}, Sex: &sex, AgeFrom: &ageFrom})
	require.NoError(t, err)

	// Bands 15-24 and 65+ only.
	assert.Equal(t, []YearValue{
		{Year: 2000, Value: 2005},
		{Year: 2001, Value: 2025},
	}, got)
}

func TestPopulationByYear_RegionFilter(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.PopulationByYear(context.Background(), Params{Region: "Southern Europe"})
	require.NoError(t, err)

	// ESP + ITA.
	assert.Equal(t, []YearValue{
		{Year: 2000, Value: 50436},
		{Year: 2001, Value: 50676},
	}, got)
}

func TestPopulationByYear_UnknownRegionIsEmpty(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.PopulationByYear(context.Background(), Params{Region: "Atlantis"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPopulationByYear_InvertedRange(t *testing.T) {
	svc := newTestService(t)

	from, to := 2010, 2000
	_, err := svc.PopulationByYear(context.Background(), Params{YearFrom: &from, YearTo: &to})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestPopulationByYear_InvalidSex(t *testing.T) {
	svc := newTestService(t)

	sex := domain.Sex("dog")
	_, err := svc.PopulationByYear(context.Background(), Params{Sex: &sex})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestPopulationPyramid(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.PopulationPyramid(context.Background(),
		Params{Countries: []string{"ESP"}}, 2000)
	require.NoError(t, err)

	// 4 bands x 3 sexes, ordered by band lower bound.
	require.Len(t, got, 12)
	assert.Equal(t, PyramidRow{AgeBand: "0-4", AgeStart: 0, Sex: "both", Value: 3000}, got[0])
	assert.Equal(t, "0-4", got[1].AgeBand)
	assert.Equal(t, "65+", got[11].AgeBand)
	assert.Equal(t, 65, got[11].AgeStart)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].AgeStart, got[i-1].AgeStart)
	}
}

func TestFertilityTrend(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.FertilityTrend(context.Background(), Params{Countries: []string{"ESP"}})
	require.NoError(t, err)
	assert.Equal(t, []YearValue{
		{Year: 2000, Value: 1.2},
		{Year: 2001, Value: 1.1},
	}, got)
}

func TestFertilityTrend_NoDataIsEmpty(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.FertilityTrend(context.Background(), Params{Countries: []string{"ITA"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFertilityByCountry(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.FertilityByCountry(context.Background(), 2000)
	require.NoError(t, err)
	assert.Equal(t, []CountryValue{
		{Code: "ESP", Name: "Spain", Value: 1.2},
		{Code: "FRA", Name: "France", Value: 1.9},
	}, got)
}

func TestCountryInfo(t *testing.T) {
	svc := newTestService(t)

	c, err := svc.CountryInfo("spain")
	require.NoError(t, err)
	assert.Equal(t, "ESP", c.Alpha3)

	_, err = svc.CountryInfo("Atlantis")
	require.Error(t, err)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestQueries_ArtifactMissing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Open(filepath.Join(t.TempDir(), "missing.parquet"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	svc := New(eng, reference.NewSet(nil), logger)
	_, err = svc.PopulationByYear(context.Background(), Params{})
	require.Error(t, err)
	var notFound *domain.ArtifactNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
