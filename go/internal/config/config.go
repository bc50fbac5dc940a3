// Package config loads splitsync settings from defaults, an optional YAML
// file, a .env file and SPLITSYNC_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultURL is the public relay.
const DefaultURL = "wss://play.sourceruns.org:12346"

// ErrInvalidAlign is returned for a text alignment other than left, center
// or right.
var ErrInvalidAlign = errors.New("text_align must be left, center or right")

// Config holds the settings of both binaries.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Relay   RelayConfig   `yaml:"relay"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
}

// ClientConfig holds the viewer/controller connection settings.
type ClientConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	OffsetMS int    `yaml:"offset_ms"`
	Segments int    `yaml:"segments"`
}

// RelayConfig holds relay server settings. Passwords is the ordered runner
// list; each successful login is told the password that follows its own.
type RelayConfig struct {
	Addr      string   `yaml:"addr"`
	Passwords []string `yaml:"passwords"`
	NATSURL   string   `yaml:"nats_url"`
	Subject   string   `yaml:"subject"`
}

// DisplayConfig holds the timer face styling.
type DisplayConfig struct {
	FontScale float64 `yaml:"font_scale"`
	FontColor string  `yaml:"font_color"`
	TextAlign string  `yaml:"text_align"`
}

// LogConfig holds the zerolog level and the viewer's log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Client: ClientConfig{
			URL:      DefaultURL,
			Segments: 1,
		},
		Relay: RelayConfig{
			Addr:    ":12346",
			Subject: "splitsync.commands",
		},
		Display: DisplayConfig{
			FontScale: 1,
			FontColor: "ea7500",
			TextAlign: "center",
		},
		Log: LogConfig{
			Level: "info",
			File:  "splitsync.log",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Client.URL = getEnv("SPLITSYNC_URL", c.Client.URL)
	c.Client.Password = getEnv("SPLITSYNC_PASSWORD", c.Client.Password)
	c.Client.OffsetMS = getEnvAsInt("SPLITSYNC_OFFSET", c.Client.OffsetMS)
	c.Client.Segments = getEnvAsInt("SPLITSYNC_SEGMENTS", c.Client.Segments)

	c.Relay.Addr = getEnv("SPLITSYNC_RELAY_ADDR", c.Relay.Addr)
	if v := os.Getenv("SPLITSYNC_RELAY_PASSWORDS"); v != "" {
		c.Relay.Passwords = SplitList(v)
	}
	c.Relay.NATSURL = getEnv("SPLITSYNC_NATS_URL", c.Relay.NATSURL)
	c.Relay.Subject = getEnv("SPLITSYNC_NATS_SUBJECT", c.Relay.Subject)

	c.Log.Level = getEnv("SPLITSYNC_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("SPLITSYNC_LOG_FILE", c.Log.File)
}

// normalize clamps values the way the display and controller expect them.
func (c *Config) normalize() error {
	c.Client.OffsetMS = ClampOffset(c.Client.OffsetMS)
	if c.Client.Segments < 1 {
		c.Client.Segments = 1
	}

	if c.Display.FontScale <= 0 {
		c.Display.FontScale = 1
	}
	c.Display.FontColor = strings.TrimPrefix(c.Display.FontColor, "#")
	if c.Display.FontColor == "" {
		c.Display.FontColor = "ea7500"
	}
	switch c.Display.TextAlign {
	case "":
		c.Display.TextAlign = "center"
	case "left", "center", "right":
	default:
		return fmt.Errorf("display: %w (got %q)", ErrInvalidAlign, c.Display.TextAlign)
	}
	return nil
}

// ZerologLevel returns the configured level, falling back to info.
func (l LogConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// ClampOffset keeps an event offset non-negative.
func ClampOffset(ms int) int {
	if ms < 0 {
		return 0
	}
	return ms
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
