package watcher

import (
	"strings"
	"time"
)

// DefaultPollInterval is the coverage polling interval
const DefaultPollInterval = 500 * time.Millisecond

// DefaultSelfMarker identifies the engine's own debuggable targets
const DefaultSelfMarker = "whyflow-engine"

// DefaultNoise lists path keywords of build tool, framework and dependency code
var DefaultNoise = []string{
	"node_modules",
	".next",
	"next-dev-server",
	"hot-reloader",
	"turbopack",
	"manifest-loader",
	"entry-key",
	"middleware",
	"base-server",
	"patch-set-header",
	"whyflow-data",
}

// Config represents watcher settings
type Config struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Root         string        `yaml:"root" mapstructure:"root"`                 // project root; only scripts below it are observed
	PollInterval time.Duration `yaml:"pollInterval" mapstructure:"pollInterval"` // coverage snapshot interval
	Noise        []string      `yaml:"noise" mapstructure:"noise"`               // case-insensitive path keywords to ignore
	SelfMarker   string        `yaml:"selfMarker" mapstructure:"selfMarker"`     // targets whose url or title contain it are skipped
}

// Init sets defaults
func (c *Config) Init() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 9229
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Noise == nil {
		c.Noise = DefaultNoise
	}
	if c.SelfMarker == "" {
		c.SelfMarker = DefaultSelfMarker
	}
	c.Root = strings.TrimRight(c.Root, "/")
}
