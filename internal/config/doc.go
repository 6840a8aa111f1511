// Package config loads skiff's configuration file and resolves the helper
// programs it drives.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/skiff/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # TOML Format
//
//	verbose = false
//	threshold_mb = 12
//	buffer_timeout = "10m"   # "0" waits until cancelled
//
//	[gateway]
//	binary = ""              # default: bukanir-http on $PATH or ./backend
//	bind = "127.0.0.1:7314"
//
//	[stream]
//	binary = ""              # default: torrent2http on $PATH or ./backend
//	bind = "127.0.0.1:5001"
//
//	[player]
//	binary = ""              # default: mpv, then mplayer
//	fullscreen = true
//
//	[settings]
//	limit = 30
//	days = 90
//	language = "English"
//	codepage = "auto"
//	dl_rate = -1
//	ul_rate = -1
//	port = 6881
//	encryption = 1
//	keep_files = false
//	download_dir = ""
//	category = 201
//
// Tilde expansion is performed for the config path, log_dir, binaries and
// download_dir.
//
// # Runtime Resolution
//
// Resolve turns a Config into a Runtime once at startup. Program lookup tries
// the configured path, then $PATH, then a backend directory under the working
// directory. A missing program returns ErrMissingBinary.
//
// # Live Settings
//
// Holder keeps the [settings] section and reloads it when the file changes.
// Consumers snapshot Settings at launch time; a reload only affects the next
// launch. Program paths and binds are fixed for the process lifetime.
package config
