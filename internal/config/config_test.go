package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/datalens")
	t.Setenv("SERVICE_ROLE_KEY", "service-key")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 999, cfg.Ingest.CSVMaxDataLines)
	assert.Equal(t, 0, cfg.Ingest.JSONMaxRows)
	assert.Equal(t, 10, cfg.Ingest.SampleRows)
	assert.Equal(t, 60*time.Second, cfg.Ingest.FetchTimeout)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "datasets", cfg.Storage.Bucket)
	assert.Equal(t, 30*time.Minute, cfg.Workers.StaleAfter)
	assert.Equal(t, "postgres://localhost/datalens", cfg.DSN())
}

func TestValidateReportsEveryMissingSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("SERVICE_ROLE_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "SERVICE_ROLE_KEY")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestGeminiProviderReadsItsOwnKey(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Load()
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("GEMINI_API_KEY", "g-key")
	require.NoError(t, Load().Validate())
}

func TestDSNFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "pw")

	cfg := Load()
	assert.Equal(t, "host=db port=5432 user=postgres password=pw dbname=datalens sslmode=disable", cfg.DSN())
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "many")
	t.Setenv("STALE_AFTER", "soon")

	cfg := Load()
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 30*time.Minute, cfg.Workers.StaleAfter)
}

func TestFetchTimeoutIsIndependentOfModelTimeout(t *testing.T) {
	t.Setenv("INGEST_FETCH_TIMEOUT", "15s")
	t.Setenv("LLM_TIMEOUT", "3m")

	cfg := Load()
	assert.Equal(t, 15*time.Second, cfg.Ingest.FetchTimeout)
	assert.Equal(t, 3*time.Minute, cfg.LLM.Timeout)
}
