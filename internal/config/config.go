// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob the harvester reads. It is loaded once at
// startup and passed explicitly; no other package consults Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CatalogConfig points the client at the remote catalog.
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// HarvestConfig governs the page loop and the enrichment fan-out.
type HarvestConfig struct {
	Subject     string `mapstructure:"subject"`
	Limit       int    `mapstructure:"limit"`
	Pages       int    `mapstructure:"pages"`
	Concurrency int    `mapstructure:"concurrency"`
}

// StoreConfig selects and configures the incremental store.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	CSV      CSVConfig      `mapstructure:"csv"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// CSVConfig locates the append-only output table.
type CSVConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls access to the relational store variant.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ArchiveConfig selects where raw catalog payloads are kept, if anywhere.
type ArchiveConfig struct {
	Provider string             `mapstructure:"provider"`
	Local    LocalArchiveConfig `mapstructure:"local"`
	GCS      GCSArchiveConfig   `mapstructure:"gcs"`
}

// LocalArchiveConfig sets the directory for the on-disk archive.
type LocalArchiveConfig struct {
	Dir string `mapstructure:"dir"`
}

// GCSArchiveConfig holds bucket metadata for the GCS archive.
type GCSArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// NotifyConfig selects the append-notification publisher.
type NotifyConfig struct {
	Provider string       `mapstructure:"provider"`
	PubSub   PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the ops HTTP server. APIKey is optional; when
// set, every request must carry it.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	APIKey  string `mapstructure:"api_key"`
}

// ProgressConfig tunes progress hub buffering.
type ProgressConfig struct {
	Buffer          int `mapstructure:"buffer"`
	BatchSize       int `mapstructure:"batch_size"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
}

// Load builds a Config from disk/environment. An empty path falls back
// to a harvester.yaml in the working directory, which may be absent.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("harvester")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("catalog.base_url", "https://openlibrary.org")
	v.SetDefault("catalog.timeout_seconds", 20)
	v.SetDefault("catalog.user_agent", "openlibrary-harvester/1.0")
	v.SetDefault("harvest.subject", "fiction")
	v.SetDefault("harvest.limit", 100)
	v.SetDefault("harvest.pages", 100)
	v.SetDefault("harvest.concurrency", 8)
	v.SetDefault("store.provider", "csv")
	v.SetDefault("store.csv.path", "fiction_books.csv")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.local.dir", "archive")
	v.SetDefault("archive.gcs.prefix", "raw")
	v.SetDefault("notify.provider", "none")
	v.SetDefault("notify.pubsub.topic", "harvest-appends")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("progress.buffer", 256)
	v.SetDefault("progress.batch_size", 16)
	v.SetDefault("progress.flush_interval_ms", 500)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url must be set")
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("catalog.timeout_seconds must be > 0")
	}
	if c.Harvest.Subject == "" {
		return fmt.Errorf("harvest.subject must be set")
	}
	if c.Harvest.Limit <= 0 {
		return fmt.Errorf("harvest.limit must be > 0")
	}
	if c.Harvest.Pages <= 0 {
		return fmt.Errorf("harvest.pages must be > 0")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	switch c.Store.Provider {
	case "csv":
		if c.Store.CSV.Path == "" {
			return fmt.Errorf("store.csv.path must be set")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when store.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("store.provider %q is not one of csv, postgres, memory", c.Store.Provider)
	}
	switch c.Archive.Provider {
	case "none", "memory":
	case "local":
		if c.Archive.Local.Dir == "" {
			return fmt.Errorf("archive.local.dir must be set when archive.provider is local")
		}
	case "gcs":
		if c.Archive.GCS.Bucket == "" {
			return fmt.Errorf("archive.gcs.bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("archive.provider %q is not one of none, local, gcs, memory", c.Archive.Provider)
	}
	switch c.Notify.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.Topic == "" {
			return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("notify.provider %q is not one of none, memory, pubsub", c.Notify.Provider)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set when the ops server is enabled")
	}
	if c.Progress.Buffer <= 0 || c.Progress.BatchSize <= 0 || c.Progress.FlushIntervalMs <= 0 {
		return fmt.Errorf("progress.buffer, progress.batch_size and progress.flush_interval_ms must be > 0")
	}
	return nil
}

// CatalogTimeout converts the configured per-call timeout into a duration.
func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// FlushInterval converts the progress flush interval into a duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Progress.FlushIntervalMs) * time.Millisecond
}
