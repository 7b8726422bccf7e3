// Package config assembles the briefing service configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/publisher"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/scheduler"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/sources"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
	appconfig "github.com/RobinCoderZhao/nk-briefing/pkg/config"
	"github.com/RobinCoderZhao/nk-briefing/pkg/llm"
	"github.com/RobinCoderZhao/nk-briefing/pkg/notify"
)

// DefaultPath is read when neither an explicit path nor BRIEFING_CONFIG is set.
const DefaultPath = "briefing.yaml"

// Config is the main configuration for the briefing service.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	LLM        llm.Config        `yaml:"llm"`
	Summarizer summarizer.Config `yaml:"summarizer"`
	Publisher  publisher.Config  `yaml:"publisher"`
	Pipeline   pipeline.Config   `yaml:"pipeline"`
	Sources    SourcesConfig     `yaml:"sources"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
	Notify     notify.Config     `yaml:"notify"`
	Log        LogConfig         `yaml:"log"`
	RunlogDB   string            `yaml:"runlog_db" env:"RUNLOG_DB"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	CORSOrigin      string        `yaml:"cors_origin" env:"CORS_ORIGIN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SourcesConfig configures the trend data sources. An API source without a
// URL, or a board without a listing URL, is not registered.
type SourcesConfig struct {
	DataAPIKey string              `yaml:"-" env:"DATA_API_KEY,UNION_API_KEY"`
	Trend      sources.APIConfig   `yaml:"trend"`
	News       sources.APIConfig   `yaml:"news"`
	Board      sources.BoardConfig `yaml:"board"`
}

// ScheduleConfig controls the weekly publishing jobs.
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SCHEDULE_ENABLED"`
	Timezone string `yaml:"timezone" env:"SCHEDULE_TIMEZONE"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // "text" or "json"
}

// DefaultConfig returns a Config with the service defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM:        llm.DefaultConfig(),
		Summarizer: summarizer.DefaultConfig(),
		Publisher:  publisher.DefaultConfig(),
		Pipeline:   pipeline.DefaultConfig(),
		Sources: SourcesConfig{
			Trend: sources.APIConfig{
				Name:         "trend",
				URL:          "https://www.unikorea.go.kr/api/nk-trend/list",
				TitleField:   "title",
				ContentField: "content",
				Timeout:      15 * time.Second,
			},
			News: sources.APIConfig{
				Name:         "news",
				TitleField:   "title",
				ContentField: "content",
				ContentLimit: 500,
				ExtraParams:  map[string]string{"searchCategory": "북한주요소식"},
				Timeout:      15 * time.Second,
			},
			Board: sources.BoardConfig{
				Name:     "board",
				Interval: time.Second,
				Timeout:  15 * time.Second,
			},
		},
		Schedule: ScheduleConfig{
			Enabled:  true,
			Timezone: scheduler.DefaultTimezone,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env (if present), then the YAML file at path, then env
// overrides, and validates the result. An empty path falls back to
// BRIEFING_CONFIG and then DefaultPath; a missing file keeps the defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("BRIEFING_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	if err := appconfig.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	cfg.Sources.Trend.APIKey = cfg.Sources.DataAPIKey
	cfg.Sources.News.APIKey = cfg.Sources.DataAPIKey

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports configuration that would fail every run.
func (c Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm api key is required (LLM_API_KEY or OPENAI_API_KEY)"))
	}
	if c.Publisher.Platform != "" && !strings.EqualFold(c.Publisher.Platform, publisher.PlatformTistory) {
		errs = append(errs, fmt.Errorf("unsupported blog platform: %s", c.Publisher.Platform))
	}
	if lang := c.Pipeline.DefaultLanguage; lang != "" && !summarizer.Supported(lang) {
		errs = append(errs, fmt.Errorf("unsupported default language: %s", lang))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}
