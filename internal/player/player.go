// Package player builds command lines for the supported media players.
package player

import (
	"path/filepath"
	"strings"
)

// MaxSubtitles is the most subtitle files handed to a player.
const MaxSubtitles = 3

// Kind identifies a player family; each has its own flag dialect.
type Kind int

const (
	MPV Kind = iota
	MPlayer
)

func (k Kind) String() string {
	if k == MPlayer {
		return "mplayer"
	}
	return "mpv"
}

// Detect infers the player family from a binary path.
func Detect(binary string) Kind {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(binary), filepath.Ext(binary)))
	if strings.Contains(name, "mplayer") {
		return MPlayer
	}
	return MPV
}

// Options are the player flags taken from settings at launch time.
type Options struct {
	Binary     string
	Kind       Kind
	Fullscreen bool
	Verbose    bool
	Codepage   string // "auto" or empty leaves detection to the player
}

// Args returns the argument vector (without the binary) to play url.
// Subtitles beyond MaxSubtitles are ignored.
func (o Options) Args(url string, subtitles []string, title string) []string {
	if len(subtitles) > MaxSubtitles {
		subtitles = subtitles[:MaxSubtitles]
	}
	if o.Kind == MPlayer {
		return o.mplayerArgs(url, subtitles, title)
	}
	return o.mpvArgs(url, subtitles, title)
}

func (o Options) mpvArgs(url string, subtitles []string, title string) []string {
	var args []string
	if o.Fullscreen {
		args = append(args, "--fullscreen")
	}
	args = append(args, "--quiet", url, "--no-ytdl")
	if !o.Verbose {
		args = append(args, "--really-quiet")
	}
	for _, s := range subtitles {
		args = append(args, "--sub-file", s)
	}
	if len(subtitles) > 0 && o.customCodepage() {
		args = append(args, "--sub-codepage", o.Codepage)
	}
	if title != "" {
		args = append(args, "--title", title, "--media-title", title)
	}
	return args
}

func (o Options) mplayerArgs(url string, subtitles []string, title string) []string {
	var args []string
	if o.Fullscreen {
		args = append(args, "-fs")
	}
	args = append(args, "-quiet", url)
	if !o.Verbose {
		args = append(args, "-really-quiet")
	}
	if len(subtitles) > 0 {
		args = append(args, "-sub", strings.Join(subtitles, ","))
		if o.customCodepage() {
			args = append(args, "-sub-cp", o.Codepage)
		}
	}
	if title != "" {
		args = append(args, "-title", title)
	}
	return args
}

func (o Options) customCodepage() bool {
	cp := strings.TrimSpace(o.Codepage)
	return cp != "" && !strings.EqualFold(cp, "auto")
}
