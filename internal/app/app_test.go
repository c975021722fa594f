package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyyMo/skynet-ai/internal/config"
	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	transcripts := filepath.Join(dir, "transcripts")
	require.NoError(t, os.MkdirAll(transcripts, 0o755))
	body := "<html><head><title>Sync</title><meta name=\"created\" content=\"2099-01-01T00:00:00Z\"></head><body><p>" +
		strings.Repeat("export ", 60) + "</p></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(transcripts, "sync.html"), []byte(body), 0o644))

	cfg := config.Default()
	cfg.Source.Kind = "directory"
	cfg.Source.Directory = transcripts
	cfg.Ledger.Path = filepath.Join(dir, "ledger.json")
	cfg.Database.DSN = filepath.Join(dir, "stories.db")
	return cfg
}

func TestNewWiresDirectorySource(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	application, err := New(context.Background(), cfg, logging.NewWithWriter(&strings.Builder{}, "debug", "logfmt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	previews, err := application.Pipeline.Preview(context.Background())
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "sync", previews[0].ID)
	assert.True(t, previews[0].Eligible)
	assert.True(t, previews[0].Sufficient)

	_, err = application.Run(context.Background())
	assert.True(t, errors.Is(err, domain.ErrConfiguration), "no LLM key means no pass")

	_, statErr := os.Stat(cfg.Ledger.Path)
	assert.NoError(t, statErr, "ledger is initialized on open")
}

func TestHandlerServesHealth(t *testing.T) {
	t.Parallel()

	application, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRejectsBadDatabase(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	_, err := New(context.Background(), cfg, nil)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
