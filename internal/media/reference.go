// Package media classifies what the user asked to play: a magnet locator that
// has to go through the stream daemon, a direct URL the player can open, or a
// page on a video host that the gateway must resolve first.
package media

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// Kind tells the orchestrator how to route a reference.
type Kind int

const (
	KindMagnet Kind = iota
	KindDirect
	KindHosted
)

func (k Kind) String() string {
	switch k {
	case KindMagnet:
		return "magnet"
	case KindDirect:
		return "direct"
	case KindHosted:
		return "hosted"
	default:
		return "unknown"
	}
}

// ErrUnsupported is returned for locators skiff cannot route.
var ErrUnsupported = errors.New("unsupported media locator")

// Reference identifies content to play.
type Reference struct {
	Kind        Kind
	URI         string
	InfoHash    string // magnet only, lowercase hex
	DisplayName string // magnet dn= when present
	VideoID     string // hosted only
}

var hostedDomains = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// Parse classifies raw.
func Parse(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty", ErrUnsupported)
	}

	if strings.HasPrefix(strings.ToLower(trimmed), "magnet:") {
		m, err := metainfo.ParseMagnetUri(trimmed)
		if err != nil {
			return Reference{}, fmt.Errorf("parse magnet: %w", err)
		}
		return Reference{
			Kind:        KindMagnet,
			URI:         trimmed,
			InfoHash:    m.InfoHash.HexString(),
			DisplayName: m.DisplayName,
		}, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Reference{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Reference{}, fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
	}
	if u.Host == "" {
		return Reference{}, fmt.Errorf("%w: missing host", ErrUnsupported)
	}

	if hostedDomains[strings.ToLower(u.Hostname())] {
		id := videoID(u)
		if id == "" {
			return Reference{}, fmt.Errorf("%w: no video id in %s", ErrUnsupported, trimmed)
		}
		return Reference{Kind: KindHosted, URI: trimmed, VideoID: id}, nil
	}

	return Reference{Kind: KindDirect, URI: trimmed}, nil
}

func videoID(u *url.URL) string {
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if rest, ok := strings.CutPrefix(u.Path, "/embed/"); ok {
		return strings.Trim(rest, "/")
	}
	return ""
}
