package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Helper program names looked up when no explicit binary is configured.
const (
	GatewayName = "bukanir-http"
	StreamName  = "torrent2http"
)

// ErrMissingBinary means a required helper program could not be located.
var ErrMissingBinary = errors.New("required program not found")

// Runtime is the immutable result of resolving a Config against the host:
// every program is an absolute path.
type Runtime struct {
	Config
	GatewayBinary string
	StreamBinary  string
	PlayerBinary  string
}

// lookup abstracts exec.LookPath and the working directory for tests.
type lookup struct {
	path   func(string) (string, error)
	cwd    func() (string, error)
	goos   string
	exists func(string) bool
}

func hostLookup() lookup {
	return lookup{
		path: exec.LookPath,
		cwd:  os.Getwd,
		goos: runtime.GOOS,
		exists: func(p string) bool {
			info, err := os.Stat(p)
			return err == nil && !info.IsDir()
		},
	}
}

// Resolve locates the gateway, stream daemon and player. It runs once at
// startup; a missing program is fatal to the caller.
func Resolve(cfg Config) (Runtime, error) {
	return resolveWith(cfg, hostLookup())
}

func resolveWith(cfg Config, l lookup) (Runtime, error) {
	rt := Runtime{Config: cfg}
	var err error
	if rt.GatewayBinary, err = l.backend(cfg.Gateway.Binary, GatewayName); err != nil {
		return Runtime{}, err
	}
	if rt.StreamBinary, err = l.backend(cfg.Stream.Binary, StreamName); err != nil {
		return Runtime{}, err
	}
	if rt.PlayerBinary, err = l.player(cfg.Player.Binary); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

// backend tries the explicit path, then $PATH, then ./backend/<name>.
func (l lookup) backend(explicit, name string) (string, error) {
	if explicit != "" {
		if l.exists(explicit) {
			return explicit, nil
		}
		return "", fmt.Errorf("%w: %s (configured as %s)", ErrMissingBinary, name, explicit)
	}
	exe := name
	if l.goos == "windows" {
		exe += ".exe"
	}
	if p, err := l.path(exe); err == nil {
		return p, nil
	}
	if cwd, err := l.cwd(); err == nil {
		candidate := filepath.Join(cwd, "backend", exe)
		if l.exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingBinary, name)
}

// player prefers mpv, then mplayer; on windows mpv.exe next to skiff.
func (l lookup) player(explicit string) (string, error) {
	if explicit != "" {
		if l.exists(explicit) {
			return explicit, nil
		}
		if p, err := l.path(explicit); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: player %s", ErrMissingBinary, explicit)
	}
	if l.goos == "windows" {
		if cwd, err := l.cwd(); err == nil {
			candidate := filepath.Join(cwd, "mpv.exe")
			if l.exists(candidate) {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: mpv.exe", ErrMissingBinary)
	}
	for _, name := range []string{"mpv", "mplayer"} {
		if p, err := l.path(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: mpv or mplayer", ErrMissingBinary)
}
