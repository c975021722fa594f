package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, notionTokenEnv, notionDatabaseEnv, llmAPIKeyEnv, llmModelEnv, llmEndpointEnv,
		slackWebhookEnv, schedulerEnabledEnv, pollIntervalEnv, databaseDriverEnv, databaseDSNEnv,
		ledgerPathEnv, logLevelEnv, httpAddrEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "notion", cfg.Source.Kind)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval.Std())
	assert.Equal(t, 10, cfg.Pipeline.ScheduledPageSize)
	assert.Equal(t, 20, cfg.Pipeline.OnDemandPageSize)
	assert.Equal(t, 50, cfg.Pipeline.PreviewPageSize)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "skynet.yaml")
	content := `
source:
  kind: notion
  databaseId: db-from-file
llm:
  model: file-model
slack:
  pacing: 300ms
scheduler:
  enabled: false
  interval: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv(notionTokenEnv, "secret-token")
	t.Setenv(schedulerEnabledEnv, "true")
	t.Setenv(pollIntervalEnv, "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db-from-file", cfg.Source.DatabaseID)
	assert.Equal(t, "secret-token", cfg.Source.Token)
	assert.Equal(t, "file-model", cfg.LLM.Model)
	assert.Equal(t, 300*time.Millisecond, cfg.Slack.Pacing.Std())
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval.Std())
	assert.Equal(t, "https://hooks.slack.com/services/", cfg.Slack.WebhookPrefix)
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "skynet.toml")
	content := `
[source]
kind = "directory"
directory = "/srv/transcripts"

[database]
driver = "postgres"
dsn = "postgres://localhost/stories"

[scheduler]
interval = "1h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "directory", cfg.Source.Kind)
	assert.Equal(t, "/srv/transcripts", cfg.Source.Directory)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval.Std())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Source.Token = "t"
	valid.Source.DatabaseID = "db"
	valid.LLM.APIKey = "k"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing notion token", func(c *Config) { c.Source.Token = "" }},
		{"missing database id", func(c *Config) { c.Source.DatabaseID = "" }},
		{"missing llm key", func(c *Config) { c.LLM.APIKey = "" }},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }},
		{"directory without path", func(c *Config) { c.Source.Kind = "directory" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}
