package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the parsed skiff configuration file.
type Config struct {
	Path          string
	Verbose       bool
	ThresholdMB   float64
	BufferTimeout time.Duration // zero waits for buffering until cancelled
	TimeUnit      time.Duration
	LogDir        string

	Gateway Program
	Stream  Program
	Player  Player

	Settings Settings
}

// Program locates one helper daemon.
type Program struct {
	Binary string
	Bind   string
}

// Player configures the media player.
type Player struct {
	Binary     string
	Fullscreen bool
}

// Settings are the user-tunable options snapshotted at each launch.
type Settings struct {
	Limit        int
	Days         int
	Language     string
	Codepage     string
	DownloadRate int
	UploadRate   int
	ListenPort   int
	Encryption   int
	KeepFiles    bool
	DownloadDir  string
	Category     int
}

const (
	defaultConfigPath    = "~/.config/skiff/config.toml"
	defaultLogDir        = "~/.cache/skiff"
	defaultGatewayBind   = "127.0.0.1:7314"
	defaultStreamBind    = "127.0.0.1:5001"
	defaultThresholdMB   = 12
	defaultBufferTimeout = 10 * time.Minute
	defaultTimeUnit      = time.Second
)

// DefaultSettings returns the settings used when the file has none.
func DefaultSettings() Settings {
	return Settings{
		Limit:        30,
		Days:         90,
		Language:     "English",
		Codepage:     "auto",
		DownloadRate: -1,
		UploadRate:   -1,
		ListenPort:   6881,
		Encryption:   1,
		Category:     201,
	}
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ThresholdMB:   defaultThresholdMB,
		BufferTimeout: defaultBufferTimeout,
		TimeUnit:      defaultTimeUnit,
		LogDir:        mustExpand(defaultLogDir),
		Gateway:       Program{Bind: defaultGatewayBind},
		Stream:        Program{Bind: defaultStreamBind},
		Player:        Player{Fullscreen: true},
		Settings:      DefaultSettings(),
	}
}

type rawProgram struct {
	Binary string `toml:"binary"`
	Bind   string `toml:"bind"`
}

type rawConfig struct {
	Verbose       bool     `toml:"verbose"`
	ThresholdMB   *float64 `toml:"threshold_mb"`
	BufferTimeout *string  `toml:"buffer_timeout"`
	TimeUnit      string   `toml:"time_unit"`
	LogDir        string   `toml:"log_dir"`

	Gateway rawProgram `toml:"gateway"`
	Stream  rawProgram `toml:"stream"`
	Player  struct {
		Binary     string `toml:"binary"`
		Fullscreen *bool  `toml:"fullscreen"`
	} `toml:"player"`

	Settings struct {
		Limit        *int   `toml:"limit"`
		Days         *int   `toml:"days"`
		Language     string `toml:"language"`
		Codepage     string `toml:"codepage"`
		DownloadRate *int   `toml:"dl_rate"`
		UploadRate   *int   `toml:"ul_rate"`
		ListenPort   *int   `toml:"port"`
		Encryption   *int   `toml:"encryption"`
		KeepFiles    bool   `toml:"keep_files"`
		DownloadDir  string `toml:"download_dir"`
		Category     *int   `toml:"category"`
	} `toml:"settings"`
}

// Load locates and parses the skiff config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.Path = resolved

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Verbose = raw.Verbose
	if raw.ThresholdMB != nil && *raw.ThresholdMB > 0 {
		cfg.ThresholdMB = *raw.ThresholdMB
	}
	if raw.BufferTimeout != nil {
		d, err := parseDuration(*raw.BufferTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: buffer_timeout: %w", err)
		}
		cfg.BufferTimeout = d
	}
	if unit := strings.TrimSpace(raw.TimeUnit); unit != "" {
		d, err := parseDuration(unit)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("parse config: time_unit %q is not a positive duration", unit)
		}
		cfg.TimeUnit = d
	}
	if dir := strings.TrimSpace(raw.LogDir); dir != "" {
		cfg.LogDir = mustExpand(dir)
	}

	cfg.Gateway = program(raw.Gateway, defaultGatewayBind)
	cfg.Stream = program(raw.Stream, defaultStreamBind)
	cfg.Player.Binary = strings.TrimSpace(raw.Player.Binary)
	if raw.Player.Fullscreen != nil {
		cfg.Player.Fullscreen = *raw.Player.Fullscreen
	}

	s := raw.Settings
	setInt(&cfg.Settings.Limit, s.Limit)
	setInt(&cfg.Settings.Days, s.Days)
	setInt(&cfg.Settings.DownloadRate, s.DownloadRate)
	setInt(&cfg.Settings.UploadRate, s.UploadRate)
	setInt(&cfg.Settings.ListenPort, s.ListenPort)
	setInt(&cfg.Settings.Encryption, s.Encryption)
	setInt(&cfg.Settings.Category, s.Category)
	if lang := strings.TrimSpace(s.Language); lang != "" {
		cfg.Settings.Language = lang
	}
	if cp := strings.TrimSpace(s.Codepage); cp != "" {
		cfg.Settings.Codepage = strings.ToLower(cp)
	}
	cfg.Settings.KeepFiles = s.KeepFiles
	if dir := strings.TrimSpace(s.DownloadDir); dir != "" {
		cfg.Settings.DownloadDir = mustExpand(dir)
	}

	return cfg, nil
}

// LogPath returns the path of skiff's own log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/skiff.log")
	}
	return filepath.Join(c.LogDir, "skiff.log")
}

// Units converts a count of time units into a duration.
func (c Config) Units(n float64) time.Duration {
	unit := c.TimeUnit
	if unit <= 0 {
		unit = defaultTimeUnit
	}
	return time.Duration(float64(unit) * n)
}

func program(raw rawProgram, defaultBind string) Program {
	p := Program{Binary: strings.TrimSpace(raw.Binary), Bind: strings.TrimSpace(raw.Bind)}
	if p.Bind == "" {
		p.Bind = defaultBind
	}
	if p.Binary != "" {
		p.Binary = mustExpand(p.Binary)
	}
	return p
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// parseDuration accepts Go durations and a bare "0".
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
