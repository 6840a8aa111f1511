package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "does-not-exist.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Gateway.Bind != defaultGatewayBind || cfg.Stream.Bind != defaultStreamBind {
		t.Fatalf("binds = %q/%q, want defaults", cfg.Gateway.Bind, cfg.Stream.Bind)
	}
	if cfg.ThresholdMB != 12 || cfg.BufferTimeout != 10*time.Minute || cfg.TimeUnit != time.Second {
		t.Fatalf("timing = %v/%v/%v, want defaults", cfg.ThresholdMB, cfg.BufferTimeout, cfg.TimeUnit)
	}
	if !cfg.Player.Fullscreen {
		t.Fatalf("Player.Fullscreen = false, want true by default")
	}
	if cfg.Settings != DefaultSettings() {
		t.Fatalf("Settings = %+v, want defaults", cfg.Settings)
	}
	if cfg.LogPath() != filepath.Join(home, ".cache", "skiff", "skiff.log") {
		t.Fatalf("LogPath = %q, want under HOME", cfg.LogPath())
	}
}

func TestLoad_LowercasesCodepage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[settings]\ncodepage = \" CP1250 \"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Settings.Codepage != "cp1250" {
		t.Fatalf("Codepage = %q, want cp1250", cfg.Settings.Codepage)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
verbose = true
threshold_mb = 20
buffer_timeout = "0"
time_unit = "250ms"

[gateway]
binary = "  ~/bin/bukanir-http  "
bind = "  127.0.0.1:8000  "

[player]
binary = "mplayer"
fullscreen = false

[settings]
limit = 50
language = "  Croatian "
dl_rate = 500
keep_files = true
download_dir = "~/Videos"
category = 207
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.Verbose || cfg.ThresholdMB != 20 || cfg.BufferTimeout != 0 || cfg.TimeUnit != 250*time.Millisecond {
		t.Fatalf("top-level = %+v, want parsed values", cfg)
	}
	if cfg.Gateway.Bind != "127.0.0.1:8000" {
		t.Fatalf("Gateway.Bind = %q, want trimmed", cfg.Gateway.Bind)
	}
	if cfg.Gateway.Binary != filepath.Join(home, "bin", "bukanir-http") {
		t.Fatalf("Gateway.Binary = %q, want expanded under HOME", cfg.Gateway.Binary)
	}
	if cfg.Stream.Bind != defaultStreamBind {
		t.Fatalf("Stream.Bind = %q, want default", cfg.Stream.Bind)
	}
	if cfg.Player.Binary != "mplayer" || cfg.Player.Fullscreen {
		t.Fatalf("Player = %+v, want mplayer windowed", cfg.Player)
	}

	s := cfg.Settings
	if s.Limit != 50 || s.Language != "Croatian" || s.DownloadRate != 500 || !s.KeepFiles || s.Category != 207 {
		t.Fatalf("Settings = %+v, want parsed values", s)
	}
	if s.UploadRate != -1 || s.ListenPort != 6881 || s.Days != 90 || s.Codepage != "auto" {
		t.Fatalf("Settings = %+v, want defaults for omitted keys", s)
	}
	if !strings.HasPrefix(s.DownloadDir, home) {
		t.Fatalf("DownloadDir = %q, want it under HOME %q", s.DownloadDir, home)
	}
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	for _, body := range []string{`buffer_timeout = "soon"`, `time_unit = "-1s"`} {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("Load(%s) returned nil error", body)
		}
	}
}

func TestLoad_InvalidTOMLReturnsError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`[settings`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
}

func TestUnits(t *testing.T) {
	cfg := Config{TimeUnit: 10 * time.Millisecond}
	if got := cfg.Units(0.5); got != 5*time.Millisecond {
		t.Fatalf("Units(0.5) = %v, want 5ms", got)
	}
	if got := (Config{}).Units(3); got != 3*time.Second {
		t.Fatalf("zero unit Units(3) = %v, want 3s", got)
	}
}

func fakeLookup(onPath map[string]string, files map[string]bool, goos string) lookup {
	return lookup{
		path: func(name string) (string, error) {
			if p, ok := onPath[name]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
		cwd:    func() (string, error) { return "/opt/skiff", nil },
		goos:   goos,
		exists: func(p string) bool { return files[p] },
	}
}

func TestResolve_LookupOrder(t *testing.T) {
	l := fakeLookup(
		map[string]string{"torrent2http": "/usr/bin/torrent2http", "mplayer": "/usr/bin/mplayer"},
		map[string]bool{"/opt/skiff/backend/bukanir-http": true},
		"linux",
	)
	rt, err := resolveWith(Default(), l)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if rt.GatewayBinary != "/opt/skiff/backend/bukanir-http" {
		t.Fatalf("GatewayBinary = %q, want backend fallback", rt.GatewayBinary)
	}
	if rt.StreamBinary != "/usr/bin/torrent2http" {
		t.Fatalf("StreamBinary = %q, want $PATH hit", rt.StreamBinary)
	}
	if rt.PlayerBinary != "/usr/bin/mplayer" {
		t.Fatalf("PlayerBinary = %q, want mplayer when mpv is absent", rt.PlayerBinary)
	}
}

func TestResolve_PrefersMPVAndExplicitPaths(t *testing.T) {
	l := fakeLookup(
		map[string]string{"mpv": "/usr/bin/mpv", "mplayer": "/usr/bin/mplayer", "torrent2http": "/usr/bin/torrent2http"},
		map[string]bool{"/srv/gw": true},
		"linux",
	)
	cfg := Default()
	cfg.Gateway.Binary = "/srv/gw"
	rt, err := resolveWith(cfg, l)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if rt.GatewayBinary != "/srv/gw" || rt.PlayerBinary != "/usr/bin/mpv" {
		t.Fatalf("Runtime = %+v, want explicit gateway and mpv", rt)
	}
}

func TestResolve_WindowsPlayerBesideExecutable(t *testing.T) {
	l := fakeLookup(
		map[string]string{"bukanir-http.exe": `C:\skiff\bukanir-http.exe`, "torrent2http.exe": `C:\skiff\torrent2http.exe`},
		map[string]bool{filepath.Join("/opt/skiff", "mpv.exe"): true},
		"windows",
	)
	rt, err := resolveWith(Default(), l)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if rt.PlayerBinary != filepath.Join("/opt/skiff", "mpv.exe") {
		t.Fatalf("PlayerBinary = %q, want mpv.exe in working dir", rt.PlayerBinary)
	}
}

func TestResolve_MissingBinaryIsNamed(t *testing.T) {
	l := fakeLookup(map[string]string{"bukanir-http": "/usr/bin/bukanir-http"}, nil, "linux")
	_, err := resolveWith(Default(), l)
	if !errors.Is(err, ErrMissingBinary) {
		t.Fatalf("err = %v, want ErrMissingBinary", err)
	}
	if !strings.Contains(err.Error(), "torrent2http") {
		t.Fatalf("err = %v, want it to name torrent2http", err)
	}
}

func TestHolder_ReloadKeepsOldSettingsOnError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[settings]\nlimit = 10\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	h := NewHolder(cfg, zerolog.Nop())
	if h.Settings().Limit != 10 {
		t.Fatalf("Limit = %d, want 10", h.Settings().Limit)
	}

	if err := os.WriteFile(path, []byte("[settings\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatalf("Reload returned nil error for broken file")
	}
	if h.Settings().Limit != 10 {
		t.Fatalf("Limit = %d after failed reload, want 10", h.Settings().Limit)
	}
}

func TestHolder_WatchPicksUpChanges(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[settings]\nlimit = 10\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	h := NewHolder(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for h.Settings().Limit != 40 {
		if time.Now().After(deadline) {
			t.Fatalf("Limit = %d, want 40 after file change", h.Settings().Limit)
		}
		// Rewrite until the watcher is registered and the debounce fires.
		if err := os.WriteFile(path, []byte("[settings]\nlimit = 40\n"), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(700 * time.Millisecond)
	}
}
