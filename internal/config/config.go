package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "TANSHIN_SCANNER_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	databasePathEnv = "TANSHIN_DB_PATH"
	feedBaseURLEnv  = "TDNET_BASE_URL"
	geminiAPIKeyEnv = "GEMINI_API_KEY"
	geminiModelEnv  = "GEMINI_MODEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Feed     FeedConfig     `yaml:"feed"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the summary cache backend. Driver is "sqlite"
// (Path) or "postgres" (DSN).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// FeedConfig describes the filings index feed. Source selects a registered
// strategy ("webapi" or "page"). IssuerCode narrows the webapi feed to one
// issuer when set to a 4-digit code.
type FeedConfig struct {
	Source     string `yaml:"source"`
	BaseURL    string `yaml:"baseUrl"`
	PageURL    string `yaml:"pageUrl"`
	IssuerCode string `yaml:"issuerCode"`
	Limit      int    `yaml:"limit"`
}

// GeminiConfig defines how to contact the Gemini API for summarization.
type GeminiConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	Model            string        `yaml:"model"`
	APIKey           string        `yaml:"apiKey"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxDocumentBytes int64         `yaml:"maxDocumentBytes"`
}

// RefreshConfig controls background catalog refresh.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration from the path in TANSHIN_SCANNER_CONFIG
// (if set) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path, for the CLI --config flag. An
// empty path means defaults plus environment overrides.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = v
	}

	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Driver = "sqlite"
		c.Database.Path = v
	}

	if v := os.Getenv(feedBaseURLEnv); v != "" {
		c.Feed.BaseURL = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Feed.Source != "" {
		base.Feed.Source = override.Feed.Source
	}
	if override.Feed.BaseURL != "" {
		base.Feed.BaseURL = override.Feed.BaseURL
	}
	if override.Feed.PageURL != "" {
		base.Feed.PageURL = override.Feed.PageURL
	}
	if override.Feed.IssuerCode != "" {
		base.Feed.IssuerCode = override.Feed.IssuerCode
	}
	if override.Feed.Limit > 0 {
		base.Feed.Limit = override.Feed.Limit
	}

	if override.Gemini.Endpoint != "" {
		base.Gemini.Endpoint = override.Gemini.Endpoint
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.Timeout > 0 {
		base.Gemini.Timeout = override.Gemini.Timeout
	}
	if override.Gemini.MaxDocumentBytes > 0 {
		base.Gemini.MaxDocumentBytes = override.Gemini.MaxDocumentBytes
	}

	if override.Refresh.Interval > 0 {
		base.Refresh.Interval = override.Refresh.Interval
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "tanshin.db",
		},
		Feed: FeedConfig{
			Source:  "webapi",
			BaseURL: "https://webapi.yanoshin.jp/webapi/tdnet/list",
			PageURL: "https://www.release.tdnet.info/inbs",
			Limit:   200,
		},
		Gemini: GeminiConfig{
			Endpoint:         "https://generativelanguage.googleapis.com/v1beta",
			Model:            "gemini-2.0-flash",
			Timeout:          90 * time.Second,
			MaxDocumentBytes: 20 * 1024 * 1024,
		},
		Refresh: RefreshConfig{Interval: 5 * time.Minute},
		Logging: LoggingConfig{Level: "info"},
	}
}
