package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gloodata/ext-go-demography/internal/domain"
)

func writeCSV(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestNormalizeFile_AgeBands(t *testing.T) {
	path := writeCSV(t, "male.csv",
		"code,year,0-4,5-14",
		"ESP,2000,100,200",
		"FRA,2001,300,400",
	)

	res, err := NormalizeFile(path, domain.SexMale, domain.MetricPopulation)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
	assert.Zero(t, res.Skipped)

	first := res.Rows[0]
	assert.Equal(t, "ESP", first.CountryCode)
	assert.Equal(t, 2000, first.Year)
	assert.Equal(t, "0-4", first.AgeBand)
	assert.Equal(t, 0, first.AgeStart)
	assert.Equal(t, domain.SexMale, first.Sex)
	assert.Equal(t, domain.MetricPopulation, first.Metric)
	require.NotNil(t, first.Value)
	assert.Equal(t, 100.0, *first.Value)
}

func TestNormalizeFile_YearColumns(t *testing.T) {
	path := writeCSV(t, "total.csv",
		"code,1990,1991",
		"ESP,39000000,39100000",
	)

	res, err := NormalizeFile(path, domain.SexBoth, domain.MetricPopulation)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1990, res.Rows[0].Year)
	assert.Equal(t, domain.AgeBandAll, res.Rows[0].AgeBand)
	assert.Equal(t, 1991, res.Rows[1].Year)
}

func TestNormalizeFile_SkipAndCount(t *testing.T) {
	path := writeCSV(t, "male.csv",
		"code,year,0-4,5-14",
		"ESP,2000,100,garbage", // one bad cell, one good
		"FRA,2001,-5,400",      // negative is invalid too
		"DEU,oops,1,2",         // bad year skips the whole record
		",2000,1,2",            // empty country code skips the whole record
		"ITA,2000,10,20",
	)

	res, err := NormalizeFile(path, domain.SexMale, domain.MetricPopulation)
	require.NoError(t, err)

	// ESP contributes 1 row, FRA 1, ITA 2; DEU and the blank-code record none.
	assert.Len(t, res.Rows, 4)
	assert.Equal(t, 6, res.Skipped)
}

func TestNormalizeFile_MissingMarkerKeepsNullRow(t *testing.T) {
	path := writeCSV(t, "male.csv",
		"code,year,0-4",
		"ESP,2000,..",
		"FRA,2000,n/a",
		"ITA,2000,",
	)

	res, err := NormalizeFile(path, domain.SexMale, domain.MetricPopulation)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Zero(t, res.Skipped)
	for _, row := range res.Rows {
		assert.Nil(t, row.Value)
	}
}

func TestNormalizeFile_MissingCountryColumn(t *testing.T) {
	path := writeCSV(t, "broken.csv",
		"year,0-4",
		"2000,1",
	)

	_, err := NormalizeFile(path, domain.SexMale, domain.MetricPopulation)
	require.Error(t, err)
	var mismatch *domain.SchemaMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestNormalizeFertilityFile(t *testing.T) {
	path := writeCSV(t, "fertility.csv",
		"Code,Year,Fertility Rate",
		"ESP,2000,1.23",
		"ESP,2001,1.19",
		",2000,2.0",
		"FRA,2000,notanumber",
	)

	res, err := NormalizeFertilityFile(path)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 2, res.Skipped)

	row := res.Rows[0]
	assert.Equal(t, "ESP", row.CountryCode)
	assert.Equal(t, domain.MetricFertility, row.Metric)
	assert.Equal(t, domain.SexBoth, row.Sex)
	assert.Equal(t, domain.AgeBandAll, row.AgeBand)
	require.NotNil(t, row.Value)
	assert.Equal(t, 1.23, *row.Value)
}

func TestNormalizeFertilityFile_MissingRateColumn(t *testing.T) {
	path := writeCSV(t, "fertility.csv",
		"Code,Year",
		"ESP,2000",
	)

	_, err := NormalizeFertilityFile(path)
	require.Error(t, err)
	var mismatch *domain.SchemaMismatchError
	assert.ErrorAs(t, err, &mismatch)
}
