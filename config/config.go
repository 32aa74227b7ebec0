package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/viant/whyflow/watcher"
)

// Observation modes
const (
	ModeInstrument = "instrument"
	ModeAttach     = "attach"
)

// Config holds all application configuration.
type Config struct {
	Project  ProjectConfig  `mapstructure:"project"`
	Mode     string         `mapstructure:"mode"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Hub      HubConfig      `mapstructure:"hub"`
	Watcher  watcher.Config `mapstructure:"watcher"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
}

type ProjectConfig struct {
	Root   string `mapstructure:"root"`
	Output string `mapstructure:"output"` // artifact directory, relative to the root unless absolute
}

type AnalyzerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 disables map refresh
	Describe        bool          `mapstructure:"describe"`         // ask the LLM for missing function docs
}

type TraceConfig struct {
	Log          string        `mapstructure:"log"` // defaults to <output>/trace.log
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type HubConfig struct {
	Addr        string        `mapstructure:"addr"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // anthropic or none
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"` // minimum spacing between requests
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputDir returns the absolute artifact directory
func (c *Config) OutputDir() string {
	if filepath.IsAbs(c.Project.Output) {
		return c.Project.Output
	}
	return filepath.Join(c.Project.Root, c.Project.Output)
}

// TraceLog returns the trace log path
func (c *Config) TraceLog() string {
	if c.Trace.Log == "" {
		return filepath.Join(c.OutputDir(), "trace.log")
	}
	if filepath.IsAbs(c.Trace.Log) {
		return c.Trace.Log
	}
	return filepath.Join(c.Project.Root, c.Trace.Log)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string
	if c.Mode != ModeInstrument && c.Mode != ModeAttach {
		warnings = append(warnings, fmt.Sprintf("unknown mode '%s', expected %s or %s", c.Mode, ModeInstrument, ModeAttach))
	}
	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty; explanations are disabled", c.LLM.Provider))
	}
	if c.Watcher.Port <= 0 || c.Watcher.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("watcher port %d is out of range", c.Watcher.Port))
	}
	if c.Trace.PollInterval <= 0 {
		warnings = append(warnings, "trace poll_interval must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log format '%s' is not supported, using text", c.Log.Format))
	}
	return warnings
}

// ExplainEnabled returns true when an explanation service can be used
func (c *Config) ExplainEnabled() bool {
	return c.LLM.Provider == "anthropic" && c.LLM.APIKey != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project.root", ".")
	v.SetDefault("project.output", "whyflow-data")
	v.SetDefault("mode", ModeInstrument)
	v.SetDefault("analyzer.concurrency", 0)
	v.SetDefault("analyzer.refresh_interval", 5*time.Second)
	v.SetDefault("analyzer.describe", false)
	v.SetDefault("trace.log", "")
	v.SetDefault("trace.poll_interval", 2*time.Second)
	v.SetDefault("hub.addr", "127.0.0.1:8080")
	v.SetDefault("hub.settle_delay", 300*time.Millisecond)
	v.SetDefault("watcher.host", "127.0.0.1")
	v.SetDefault("watcher.port", 9229)
	v.SetDefault("watcher.root", "")
	v.SetDefault("watcher.pollInterval", watcher.DefaultPollInterval)
	v.SetDefault("watcher.noise", watcher.DefaultNoise)
	v.SetDefault("watcher.selfMarker", watcher.DefaultSelfMarker)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.interval", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from an optional file and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("WHYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "WHYFLOW_LLM_API_KEY", "ANTHROPIC_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if root, err := filepath.Abs(cfg.Project.Root); err == nil {
		cfg.Project.Root = root
	}
	if cfg.Watcher.Root == "" {
		cfg.Watcher.Root = cfg.Project.Root
	}
	return &cfg, nil
}

// NewLogger creates the structured logger described by c
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(c.Level))
	options := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}
