package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/gateway"
	"github.com/five82/skiff/internal/player"
)

// fetchSubtitles downloads up to player.MaxSubtitles subtitles for the
// request into the scratch directory. Failures only shrink the result; order
// follows the gateway's ranking.
func (o *Orchestrator) fetchSubtitles(ctx context.Context, log zerolog.Logger, req PlayRequest, settings config.Settings) []string {
	lang := strings.TrimSpace(settings.Language)
	if req.Movie.Title == "" || lang == "" || strings.EqualFold(lang, "none") || o.cfg.ScratchDir == "" {
		return nil
	}

	found, err := o.deps.Metadata.Subtitles(ctx, gateway.SubtitleQuery{Movie: req.Movie, ImdbID: req.ImdbID, Language: lang})
	if err != nil {
		log.Debug().Err(err).Msg("subtitle search failed")
		return nil
	}
	found = found[:min(len(found), player.MaxSubtitles)]

	paths := make([]string, len(found))
	// No shared context: a failed download leaves its siblings running.
	var g errgroup.Group
	for i, sub := range found {
		i, sub := i, sub
		g.Go(func() error {
			path, err := o.deps.Metadata.UnzipSubtitle(ctx, sub.DownloadLink, o.cfg.ScratchDir)
			if err != nil {
				log.Debug().Err(err).Str("release", sub.Release).Msg("subtitle download failed")
				return fmt.Errorf("subtitle %q: %w", sub.Release, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Info().Err(err).Msg("some subtitles unavailable")
	}

	out := paths[:0]
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	log.Debug().Int("count", len(out)).Msg("subtitles ready")
	return out
}
