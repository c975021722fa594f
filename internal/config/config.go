package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

const (
	configPathEnv       = "SKYNET_CONFIG"
	notionTokenEnv      = "NOTION_TOKEN"
	notionDatabaseEnv   = "NOTION_DATABASE_ID"
	llmAPIKeyEnv        = "LLM_API_KEY"
	llmModelEnv         = "LLM_MODEL"
	llmEndpointEnv      = "LLM_ENDPOINT"
	slackWebhookEnv     = "SLACK_WEBHOOK_URL"
	schedulerEnabledEnv = "SCHEDULER_ENABLED"
	pollIntervalEnv     = "POLL_INTERVAL"
	databaseDriverEnv   = "DATABASE_DRIVER"
	databaseDSNEnv      = "DATABASE_DSN"
	ledgerPathEnv       = "LEDGER_PATH"
	logLevelEnv         = "LOG_LEVEL"
	httpAddrEnv         = "HTTP_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Source    SourceConfig    `yaml:"source" toml:"source"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Slack     SlackConfig     `yaml:"slack" toml:"slack"`
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline"`
	Ledger    LedgerConfig    `yaml:"ledger" toml:"ledger"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// SourceConfig selects the document store strategy and its credentials.
type SourceConfig struct {
	Kind       string `yaml:"kind" toml:"kind"`
	Token      string `yaml:"token" toml:"token"`
	DatabaseID string `yaml:"databaseId" toml:"database_id"`
	BaseURL    string `yaml:"baseUrl" toml:"base_url"`
	Directory  string `yaml:"directory" toml:"directory"`
}

// LLMConfig defines how to contact the generative text backend.
type LLMConfig struct {
	Endpoint    string   `yaml:"endpoint" toml:"endpoint"`
	Model       string   `yaml:"model" toml:"model"`
	APIKey      string   `yaml:"apiKey" toml:"api_key"`
	MaxTokens   int      `yaml:"maxTokens" toml:"max_tokens"`
	Temperature float64  `yaml:"temperature" toml:"temperature"`
	Timeout     Duration `yaml:"timeout" toml:"timeout"`
}

// SlackConfig holds the default webhook and delivery pacing.
type SlackConfig struct {
	WebhookURL    string   `yaml:"webhookUrl" toml:"webhook_url"`
	WebhookPrefix string   `yaml:"webhookPrefix" toml:"webhook_prefix"`
	Pacing        Duration `yaml:"pacing" toml:"pacing"`
}

// SchedulerConfig defines whether and how often the pipeline runs on its own.
type SchedulerConfig struct {
	Enabled  bool     `yaml:"enabled" toml:"enabled"`
	Interval Duration `yaml:"interval" toml:"interval"`
}

// PipelineConfig caps how many documents each entry point fetches.
type PipelineConfig struct {
	ScheduledPageSize int `yaml:"scheduledPageSize" toml:"scheduled_page_size"`
	OnDemandPageSize  int `yaml:"onDemandPageSize" toml:"on_demand_page_size"`
	PreviewPageSize   int `yaml:"previewPageSize" toml:"preview_page_size"`
}

// LedgerConfig points at the persisted processing ledger.
type LedgerConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// DatabaseConfig describes the story store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// HTTPConfig configures the trigger API.
type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// LoggingConfig controls the runtime logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Duration is a time.Duration written as "15m" in YAML and TOML files.
type Duration time.Duration

// Std converts to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses Go duration syntax or a bare number of minutes.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseInterval(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalText.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load reads a YAML or TOML file (if present) and applies environment overrides.
// An explicit path wins over SKYNET_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(path, raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()
	return cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(raw, cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(raw, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(notionTokenEnv); v != "" {
		c.Source.Token = v
	}
	if v := os.Getenv(notionDatabaseEnv); v != "" {
		c.Source.DatabaseID = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv(slackWebhookEnv); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv(schedulerEnabledEnv); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Scheduler.Enabled = enabled
		} else {
			log.Printf("config: ignoring %s=%q: %v", schedulerEnabledEnv, v, err)
		}
	}
	if v := os.Getenv(pollIntervalEnv); v != "" {
		if d, err := parseInterval(v); err == nil {
			c.Scheduler.Interval = Duration(d)
		} else {
			log.Printf("config: ignoring %s=%q: %v", pollIntervalEnv, v, err)
		}
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

// parseInterval accepts Go durations ("15m") or a bare number of minutes ("15").
func parseInterval(v string) (time.Duration, error) {
	if minutes, err := strconv.Atoi(v); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	return time.ParseDuration(v)
}

// fillDefaults restores defaults a file may have zeroed.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Source.Kind == "" {
		c.Source.Kind = def.Source.Kind
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = def.Source.BaseURL
	}
	if c.Slack.WebhookPrefix == "" {
		c.Slack.WebhookPrefix = def.Slack.WebhookPrefix
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = def.Scheduler.Interval
	}
	if c.Pipeline.ScheduledPageSize <= 0 {
		c.Pipeline.ScheduledPageSize = def.Pipeline.ScheduledPageSize
	}
	if c.Pipeline.OnDemandPageSize <= 0 {
		c.Pipeline.OnDemandPageSize = def.Pipeline.OnDemandPageSize
	}
	if c.Pipeline.PreviewPageSize <= 0 {
		c.Pipeline.PreviewPageSize = def.Pipeline.PreviewPageSize
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = def.Ledger.Path
	}
	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = def.Database.DSN
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = def.LLM.Endpoint
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}
}

// Validate reports missing credentials needed to run a pipeline pass.
func (c Config) Validate() error {
	switch c.Source.Kind {
	case "notion":
		if strings.TrimSpace(c.Source.Token) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrConfiguration, notionTokenEnv)
		}
		if strings.TrimSpace(c.Source.DatabaseID) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrConfiguration, notionDatabaseEnv)
		}
	case "directory":
		if strings.TrimSpace(c.Source.Directory) == "" {
			return fmt.Errorf("%w: source.directory is required for the directory source", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", domain.ErrConfiguration, c.Source.Kind)
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrConfiguration, llmAPIKeyEnv)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported database driver %q", domain.ErrConfiguration, c.Database.Driver)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Kind:    "notion",
			BaseURL: "https://api.notion.com/v1",
		},
		LLM: LLMConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			MaxTokens:   4000,
			Temperature: 0.2,
			Timeout:     Duration(90 * time.Second),
		},
		Slack: SlackConfig{
			WebhookPrefix: "https://hooks.slack.com/services/",
			Pacing:        Duration(200 * time.Millisecond),
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: Duration(15 * time.Minute),
		},
		Pipeline: PipelineConfig{
			ScheduledPageSize: 10,
			OnDemandPageSize:  20,
			PreviewPageSize:   50,
		},
		Ledger:   LedgerConfig{Path: "data/processed-documents.json"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/stories.db"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}
