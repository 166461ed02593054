package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is omitted.
const (
	DefaultRegistryURL   = "https://crates.io"
	DefaultTimeout       = 5 * time.Second
	DefaultWatchInterval = 10 * time.Minute
	DefaultCooldown      = time.Hour
	DefaultAddress       = ":8080"
	DefaultStoragePath   = "cratecheck.db"
	DefaultColorMode     = "auto"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	d.Duration = dur
	return nil
}

// Registry describes the package registry that lookups are sent to.
type Registry struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// DisplayConfig controls how availability labels are rendered.
type DisplayConfig struct {
	Color string `yaml:"color"`
}

// WatchConfig lists names that are re-checked periodically by the serve command.
type WatchConfig struct {
	Interval Duration `yaml:"interval"`
	Names    []string `yaml:"names"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Registry Registry      `yaml:"registry"`
	Display  DisplayConfig `yaml:"display"`
	Watch    WatchConfig   `yaml:"watch"`
	Alerts   AlertsConfig  `yaml:"alerts"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
}

var validColorModes = map[string]bool{
	"auto":   true,
	"always": true,
	"never":  true,
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Registry: Registry{
			URL:     DefaultRegistryURL,
			Timeout: Duration{DefaultTimeout},
		},
		Display: DisplayConfig{Color: DefaultColorMode},
		Watch:   WatchConfig{Interval: Duration{DefaultWatchInterval}},
		Alerts: AlertsConfig{
			Webhook: WebhookConfig{Cooldown: Duration{DefaultCooldown}},
		},
		Server:  ServerConfig{Address: DefaultAddress},
		Storage: StorageConfig{Path: DefaultStoragePath},
	}
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data, filling in defaults.
func Parse(data []byte) (*Config, error) {
	// Registry and watch durations are decoded as raw strings so that errors
	// name the offending field; alerts go through Duration.
	type rawConfig struct {
		Registry struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"registry"`
		Display DisplayConfig `yaml:"display"`
		Watch   struct {
			Interval string   `yaml:"interval"`
			Names    []string `yaml:"names"`
		} `yaml:"watch"`
		Alerts  AlertsConfig  `yaml:"alerts"`
		Server  ServerConfig  `yaml:"server"`
		Storage StorageConfig `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := Default()

	if raw.Registry.URL != "" {
		u, err := url.Parse(raw.Registry.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("registry: invalid url %q (must be an absolute http or https url)", raw.Registry.URL)
		}
		cfg.Registry.URL = raw.Registry.URL
	}
	if raw.Registry.Timeout != "" {
		d, err := time.ParseDuration(raw.Registry.Timeout)
		if err != nil {
			return nil, fmt.Errorf("registry: invalid timeout %q: %w", raw.Registry.Timeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("registry: timeout %q must not be negative", raw.Registry.Timeout)
		}
		cfg.Registry.Timeout = Duration{d}
	}

	if raw.Display.Color != "" {
		if !validColorModes[raw.Display.Color] {
			return nil, fmt.Errorf("display: invalid color mode %q (must be auto, always, or never)", raw.Display.Color)
		}
		cfg.Display.Color = raw.Display.Color
	}

	if raw.Watch.Interval != "" {
		d, err := time.ParseDuration(raw.Watch.Interval)
		if err != nil {
			return nil, fmt.Errorf("watch: invalid interval %q: %w", raw.Watch.Interval, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("watch: interval %q must be positive", raw.Watch.Interval)
		}
		cfg.Watch.Interval = Duration{d}
	}

	seen := make(map[string]bool, len(raw.Watch.Names))
	for i, name := range raw.Watch.Names {
		if name == "" {
			return nil, fmt.Errorf("watch.names[%d]: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("watch: duplicate name %q", name)
		}
		seen[name] = true
	}
	cfg.Watch.Names = raw.Watch.Names

	cfg.Alerts.Webhook.URL = raw.Alerts.Webhook.URL
	if raw.Alerts.Webhook.Cooldown.Duration < 0 {
		return nil, fmt.Errorf("alerts: cooldown %s must not be negative", raw.Alerts.Webhook.Cooldown.Duration)
	}
	if raw.Alerts.Webhook.Cooldown.Duration > 0 {
		cfg.Alerts.Webhook.Cooldown = raw.Alerts.Webhook.Cooldown
	}

	if raw.Server.Address != "" {
		cfg.Server.Address = raw.Server.Address
	}
	if raw.Storage.Path != "" {
		cfg.Storage.Path = raw.Storage.Path
	}

	return cfg, nil
}

// ValidColorMode reports whether mode is one of auto, always, or never.
func ValidColorMode(mode string) bool {
	return validColorModes[mode]
}
