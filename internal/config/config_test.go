package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "PATIENTS_FILE", "RETRIEVER_TOP_K", "EVIDENCE_MAX_CHARS", "CALL_TIMEOUT", "NAME_TRIGGERS", "TAVILY_API_KEY"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data/patients.json", cfg.PatientsFile)
	assert.Equal(t, 3, cfg.RetrieverTopK)
	assert.Equal(t, 800, cfg.EvidenceMaxChars)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, []string{"john", "doe", "smith", "name"}, cfg.NameTriggers)
	assert.Empty(t, cfg.TavilyAPIKey)
	assert.True(t, cfg.PatientsWatch)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RETRIEVER_TOP_K", "5")
	t.Setenv("CALL_TIMEOUT", "2s")
	t.Setenv("NAME_TRIGGERS", " alice, ,bob ")
	t.Setenv("PATIENTS_WATCH", "false")
	t.Setenv("WEB_CACHE_TTL", "not-a-duration")
	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.RetrieverTopK)
	assert.Equal(t, 2*time.Second, cfg.CallTimeout)
	assert.Equal(t, []string{"alice", "bob"}, cfg.NameTriggers)
	assert.False(t, cfg.PatientsWatch)
	assert.Equal(t, time.Hour, cfg.WebCacheTTL)
}

func TestLoadRejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("EVIDENCE_MAX_CHARS", "0")
	t.Setenv("RETRIEVER_TOP_K", "-2")
	cfg := Load()

	assert.Equal(t, 800, cfg.EvidenceMaxChars)
	assert.Equal(t, 3, cfg.RetrieverTopK)
}

func TestGetEnvAsListOnlySeparators(t *testing.T) {
	t.Setenv("NAME_TRIGGERS", " , ,")
	assert.Equal(t, []string{"x"}, getEnvAsList("NAME_TRIGGERS", []string{"x"}))
}
