package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Serper   SerperConfig   `yaml:"serper" mapstructure:"serper"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Notion   NotionConfig   `yaml:"notion" mapstructure:"notion"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// OutputConfig configures where run artifacts land.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ScrapeConfig configures the exhibitor scrape stage.
type ScrapeConfig struct {
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxExhibitors int    `yaml:"max_exhibitors" mapstructure:"max_exhibitors"`
}

// ClassifyConfig configures the industry fit classifier.
type ClassifyConfig struct {
	KeywordsFile string `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// SerperConfig holds Serper search API settings.
type SerperConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// EnrichConfig configures the enrichment stage.
type EnrichConfig struct {
	Workers          int  `yaml:"workers" mapstructure:"workers"`
	MaxRetries       int  `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int  `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	BreakerThreshold int  `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int  `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	DiscoverDomains  bool `yaml:"discover_domains" mapstructure:"discover_domains"`
}

// StoreConfig configures the optional run history store.
type StoreConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotionConfig holds Notion API credentials and the target database.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// ServerConfig configures the HTTP serve mode.
type ServerConfig struct {
	Port           int `yaml:"port" mapstructure:"port"`
	RunTimeoutSecs int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A local .env is
// loaded first so credentials can live outside config.yaml.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.max_exhibitors", 200)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.timeout_secs", 15)
	v.SetDefault("serper.rate_per_sec", 2.0)
	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.initial_backoff_ms", 500)
	v.SetDefault("enrich.breaker_threshold", 5)
	v.SetDefault("enrich.breaker_reset_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "expo.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.run_timeout_secs", 600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// SERPER_API_KEY is the name the hosted deployments already export.
	_ = v.BindEnv("serper.key", "EXPO_SERPER_KEY", "SERPER_API_KEY")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Modes: "run", "serve", "runs", "push".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Scrape.MaxExhibitors < 1 {
		problems = append(problems, "scrape.max_exhibitors must be >= 1")
	}
	if c.Enrich.Workers < 1 || c.Enrich.Workers > 32 {
		problems = append(problems, "enrich.workers must be between 1 and 32")
	}
	if c.Serper.RatePerSec <= 0 {
		problems = append(problems, "serper.rate_per_sec must be > 0")
	}

	switch mode {
	case "run":
		// Serper key is optional: the enrich stage degrades to a skip.
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RunTimeoutSecs <= 0 {
			problems = append(problems, "server.run_timeout_secs must be > 0")
		}
	case "runs":
		if !c.Store.Enabled {
			problems = append(problems, "store.enabled is required for run history")
		}
	case "push":
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.DatabaseID == "" {
			problems = append(problems, "notion.database_id is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
