package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"ARTIFACT_PATH", "COUNTRIES_CSV_PATH", "LISTEN_ADDR", "LOG_LEVEL", "ENV",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "./demography.parquet", cfg.ArtifactPath)
	assert.Equal(t, "./countries.csv", cfg.CountriesPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100.0, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("ARTIFACT_PATH", "/data/demo.parquet")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_RPS", "5.5")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/data/demo.parquet", cfg.ArtifactPath)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5.5, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadFromEnv_ExplicitZeroRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("RATE_LIMIT_BURST", "0")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	// An explicit 0 is a choice, not an omission; it must not fall back to
	// the defaults.
	assert.Equal(t, 0.0, cfg.RateLimitRPS)
	assert.Equal(t, 0, cfg.RateLimitBurst)
}

func TestLoadFromEnv_BadNumbers(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "fast")
	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestValidate_ProductionWildcardCORSWarns(t *testing.T) {
	cfg := &Config{Env: "production", CORSAllowedOrigins: []string{"*"}}
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Warnings)
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	} {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), "level %q", in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n"+
			"DOTENV_TEST_A=hello\n"+
			"DOTENV_TEST_B=\"quoted value\"\n"+
			"DOTENV_TEST_C='single'\n"+
			"not a pair\n"), 0o600))

	t.Setenv("DOTENV_TEST_A", "")
	t.Setenv("DOTENV_TEST_B", "")
	t.Setenv("DOTENV_TEST_C", "")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("DOTENV_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("DOTENV_TEST_B"))
	assert.Equal(t, "single", os.Getenv("DOTENV_TEST_C"))
}

func TestLoadDotEnv_ExistingEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_TEST_D=file\n"), 0o600))

	t.Setenv("DOTENV_TEST_D", "env")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "env", os.Getenv("DOTENV_TEST_D"))
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
