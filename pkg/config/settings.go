package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"

	"trs80term/pkg/connection"
	"trs80term/pkg/history"
)

// SettingsEnv names the environment variable holding the settings file path.
const SettingsEnv = "TRS80TERM_CONFIG"

// Settings are the client-wide options. They come from one YAML file given
// by --config or TRS80TERM_CONFIG; nothing is discovered implicitly. With
// neither set, Default() is used as is.
type Settings struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFile receives the structured log. The TUI owns the terminal, so
	// logs never go to stdout.
	LogFile string `yaml:"log_file"`

	// Retry is the reconnection policy. MaxRetries 0 disables it.
	Retry connection.RetryConfig `yaml:"retry"`

	// Record, when set, saves the session traffic to this path on exit.
	Record       string `yaml:"record"`
	RecordFormat string `yaml:"record_format"`

	// HistorySize is how many messages the recorder keeps.
	HistorySize int `yaml:"history_size"`

	// DefaultProfile is used by "connect" without an argument.
	DefaultProfile string `yaml:"default_profile"`

	// ProfileDir holds profiles.json.
	ProfileDir string `yaml:"profile_dir"`

	// Foreground and Background colour the machine display: tcell colour
	// names such as "green" or "orange", or #rrggbb.
	Foreground string `yaml:"foreground"`
	Background string `yaml:"background"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		LogLevel:     "info",
		LogFile:      "trs80term-debug.log",
		Retry:        connection.DefaultRetryConfig(),
		RecordFormat: "json",
		HistorySize:  history.DefaultMaxEntries,
		ProfileDir:   DefaultConfigDir(),
		Foreground:   "white",
		Background:   "black",
	}
}

// Load reads the settings file named by TRS80TERM_CONFIG, or returns the
// defaults when it is not set.
func Load() (*Settings, error) {
	path := os.Getenv(SettingsEnv)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads settings from path on top of the defaults. ${HOME} style
// variables in paths are expanded.
func LoadFile(path string) (*Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	settings.LogFile = os.ExpandEnv(settings.LogFile)
	settings.Record = os.ExpandEnv(settings.Record)
	settings.ProfileDir = os.ExpandEnv(settings.ProfileDir)

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return settings, nil
}

// Validate checks if the settings are valid
func (s *Settings) Validate() error {
	if _, err := s.SlogLevel(); err != nil {
		return err
	}

	if err := s.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	if _, err := history.ParseFormat(s.RecordFormat); err != nil {
		return err
	}

	if s.HistorySize < 0 {
		return fmt.Errorf("history_size cannot be negative")
	}

	if _, err := s.DisplayStyle(); err != nil {
		return err
	}

	return nil
}

// SlogLevel converts LogLevel for slog handlers.
func (s *Settings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s.LogLevel)
	}
	return level, nil
}

// DisplayStyle returns the colours for the machine display.
func (s *Settings) DisplayStyle() (tcell.Style, error) {
	fg, err := parseColor("foreground", s.Foreground)
	if err != nil {
		return tcell.StyleDefault, err
	}
	bg, err := parseColor("background", s.Background)
	if err != nil {
		return tcell.StyleDefault, err
	}
	return tcell.StyleDefault.Foreground(fg).Background(bg), nil
}

func parseColor(field, name string) (tcell.Color, error) {
	color := tcell.GetColor(strings.ToLower(strings.TrimSpace(name)))
	if color == tcell.ColorDefault {
		return color, fmt.Errorf("invalid %s colour %q", field, name)
	}
	return color, nil
}

// ApplyProfile overlays the connection options saved in a profile. Empty
// profile fields keep the settings values.
func (s *Settings) ApplyProfile(p Profile) {
	if p.Retry.Enabled() {
		s.Retry = p.Retry
	}
	if p.Record != "" {
		s.Record = p.Record
	}
	if p.RecordFormat != "" {
		s.RecordFormat = p.RecordFormat
	}
}
