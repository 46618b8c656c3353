// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/user/framepace/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Backends that can open a MediaSource.
const (
	BackendLibav  = "libav"
	BackendFFmpeg = "ffmpeg"
)

// Renderers the CLI can drive.
const (
	RendererSnapshot = "snapshot"
	RendererNull     = "null"
)

// Log output formats.
const (
	LogFormatConsole = "console"
	LogFormatText    = "text"
	LogFormatJSON    = "json"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config represents the full configuration for framepace.
type Config struct {
	// Decoding
	Backend     string `yaml:"backend"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	Threads     int    `yaml:"threads"` // 0 lets the library decide

	// Presentation
	Renderer        string         `yaml:"renderer"`
	Snapshot        SnapshotConfig `yaml:"snapshot"`
	SeekLookaheadMs int            `yaml:"seek_lookahead_ms"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// SnapshotConfig configures the snapshot renderer.
type SnapshotConfig struct {
	Dir          string `yaml:"dir"`
	Format       string `yaml:"format"` // png or jpeg
	Quality      int    `yaml:"quality"`
	Width        int    `yaml:"width"` // 0 keeps the decoded width
	Overlay      bool   `yaml:"overlay"`
	OverlayColor string `yaml:"overlay_color"`
	Every        int    `yaml:"every"` // write every Nth rendered frame
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Backend: BackendLibav,

		Renderer: RendererSnapshot,
		Snapshot: SnapshotConfig{
			Dir:          "./frames",
			Format:       "png",
			Quality:      90,
			Overlay:      true,
			OverlayColor: "#ffffff",
			Every:        1,
		},
		SeekLookaheadMs: 30,

		LogLevel:  "info",
		LogFormat: LogFormatConsole,
	}
}

// LoadFromFile loads configuration from a YAML file on disk.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(data)
}

// Load loads configuration from a YAML file through fs.
func Load(fs ports.FileSystem, path string) (Config, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults. Keys that are absent keep their
// default value.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendLibav, BackendFFmpeg:
	default:
		return fmt.Errorf("%w: backend %q (want %s or %s)", ErrInvalid, c.Backend, BackendLibav, BackendFFmpeg)
	}
	switch c.Renderer {
	case RendererSnapshot, RendererNull:
	default:
		return fmt.Errorf("%w: renderer %q (want %s or %s)", ErrInvalid, c.Renderer, RendererSnapshot, RendererNull)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	if c.Threads < 0 {
		return fmt.Errorf("%w: threads must not be negative", ErrInvalid)
	}
	if c.SeekLookaheadMs < 0 {
		return fmt.Errorf("%w: seek_lookahead_ms must not be negative", ErrInvalid)
	}
	if c.Renderer == RendererSnapshot {
		if err := c.Snapshot.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s SnapshotConfig) validate() error {
	switch s.Format {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("%w: snapshot.format %q (want png or jpeg)", ErrInvalid, s.Format)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("%w: snapshot.quality %d out of range 1-100", ErrInvalid, s.Quality)
	}
	if s.Width < 0 {
		return fmt.Errorf("%w: snapshot.width must not be negative", ErrInvalid)
	}
	if s.Every < 1 {
		return fmt.Errorf("%w: snapshot.every must be at least 1", ErrInvalid)
	}
	if s.Dir == "" {
		return fmt.Errorf("%w: snapshot.dir is empty", ErrInvalid)
	}
	return nil
}

// SeekLookahead returns the seek re-basing budget as a duration.
func (c Config) SeekLookahead() time.Duration {
	return time.Duration(c.SeekLookaheadMs) * time.Millisecond
}

// Level returns the parsed log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}

// ParseColor parses a hex color string ("#rrggbb" or "rrggbb") to
// color.Color. Malformed input yields black.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}

	channel := func(hi, lo byte) uint8 {
		return hexValue(hi)<<4 | hexValue(lo)
	}
	return color.RGBA{
		R: channel(hex[0], hex[1]),
		G: channel(hex[2], hex[3]),
		B: channel(hex[4], hex[5]),
		A: 255,
	}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
