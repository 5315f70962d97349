package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discharge-assistant/internal/config"
	"discharge-assistant/internal/core"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"John Doe","mrn":123,"primary_diagnosis":"CKD","discharge_date":"2024-01-01"}]`), 0o644))
	return &config.Config{
		PatientsFile:     path,
		PatientsWatch:    true,
		RetrieverTopK:    3,
		EvidenceMaxChars: 800,
		CallTimeout:      time.Second,
		WebCacheTTL:      time.Minute,
	}
}

func TestBuildFileBackedAssistant(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	s := core.NewSession()
	reply, err := a.Orchestrator.HandleTurn(context.Background(), s, "john doe")
	require.NoError(t, err)
	assert.Equal(t, "Hi John Doe, I found a discharge on 2024-01-01 for CKD. How are you feeling? Are you following your meds?", reply.Text)

	reply, err = a.Orchestrator.HandleTurn(context.Background(), s, "Can I take ibuprofen for pain?")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Contains(t, reply.Text, "Web search is not configured")
	assert.Equal(t, 5, s.Len())
}

func TestBuildWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestWatchPatientsReloads(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Len(t, a.Directory.ListAll(ctx), 1)
	require.NoError(t, a.WatchPatients(ctx))

	require.NoError(t, os.WriteFile(cfg.PatientsFile, []byte(`[{"name":"John Doe"},{"name":"Ann Smith"}]`), 0o644))
	assert.Eventually(t, func() bool { return len(a.Directory.ListAll(ctx)) == 2 }, 2*time.Second, 20*time.Millisecond)
}
