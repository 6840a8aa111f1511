// Package gateway is the client for the metadata gateway process: search,
// listings, summaries, subtitles and trailer resolution, plus its control plane.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/five82/skiff/internal/httpapi"
)

// DefaultBind is where the gateway listens unless configured otherwise.
const DefaultBind = "127.0.0.1:7314"

// autocompleteRate bounds suggestion requests while the user types.
const autocompleteRate = rate.Limit(4)

// Client talks to the gateway HTTP API.
type Client struct {
	api     *httpapi.Client
	limiter *rate.Limiter
}

// NewClient builds a Client using the provided bind host:port value.
func NewClient(bind string) (*Client, error) {
	api, err := httpapi.New(bind, DefaultBind)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, limiter: rate.NewLimiter(autocompleteRate, 1)}, nil
}

// Status probes /status. Any parseable JSON object counts as healthy.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	payload := map[string]any{}
	if err := c.api.GetJSON(ctx, "/status", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Shutdown asks the gateway to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.api.Fire(ctx, "/shutdown")
}

// ListQuery configures /category and /search requests.
type ListQuery struct {
	Category Category
	Query    string
	Limit    int // -1 or 0 means gateway default
	Force    bool
	CacheDir string
	Days     int // cached listings older than this are refetched; 0 keeps them
}

func (q ListQuery) values() url.Values {
	values := url.Values{}
	if dir := strings.TrimSpace(q.CacheDir); dir != "" {
		values.Set("t", dir)
	}
	if q.Limit > 0 {
		values.Set("l", strconv.Itoa(q.Limit))
	}
	if q.Force {
		values.Set("f", "1")
	}
	if q.Days > 0 {
		values.Set("d", strconv.Itoa(q.Days))
	}
	return values
}

// Top lists the most popular releases of a category.
func (c *Client) Top(ctx context.Context, q ListQuery) ([]Movie, error) {
	values := q.values()
	category := q.Category
	if category == 0 {
		category = CategoryMovies
	}
	values.Set("c", strconv.Itoa(int(category)))
	var movies []Movie
	if err := c.api.GetJSON(ctx, "/category", values, &movies); err != nil {
		return nil, fmt.Errorf("top %s: %w", category.Label(), err)
	}
	return movies, nil
}

// Search finds releases matching q.Query.
func (c *Client) Search(ctx context.Context, q ListQuery) ([]Movie, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	values := q.values()
	values.Set("q", query)
	var movies []Movie
	if err := c.api.GetJSON(ctx, "/search", values, &movies); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return movies, nil
}

// Summary fetches details for one release.
func (c *Client) Summary(ctx context.Context, m Movie) (Summary, error) {
	values := url.Values{}
	values.Set("i", strconv.Itoa(m.ID))
	values.Set("c", strconv.Itoa(int(m.Category)))
	values.Set("s", strconv.Itoa(m.Season))
	values.Set("e", strconv.Itoa(m.Episode))
	var summary Summary
	if err := c.api.GetJSON(ctx, "/summary", values, &summary); err != nil {
		return Summary{}, fmt.Errorf("summary %d: %w", m.ID, err)
	}
	return summary, nil
}

// SubtitleQuery configures /subtitle requests.
type SubtitleQuery struct {
	Movie    Movie
	ImdbID   string
	Language string
}

// Subtitles searches subtitles for a release, best match first.
func (c *Client) Subtitles(ctx context.Context, q SubtitleQuery) ([]Subtitle, error) {
	values := url.Values{}
	values.Set("m", q.Movie.Title)
	values.Set("y", q.Movie.Year)
	values.Set("r", q.Movie.Release)
	values.Set("l", q.Language)
	values.Set("c", strconv.Itoa(int(q.Movie.Category)))
	values.Set("s", strconv.Itoa(q.Movie.Season))
	values.Set("e", strconv.Itoa(q.Movie.Episode))
	values.Set("i", q.ImdbID)
	var subs []Subtitle
	if err := c.api.GetJSON(ctx, "/subtitle", values, &subs); err != nil {
		return nil, fmt.Errorf("subtitles %q: %w", q.Movie.Title, err)
	}
	return subs, nil
}

// UnzipSubtitle downloads a subtitle archive into dir and returns the path of
// the extracted file.
func (c *Client) UnzipSubtitle(ctx context.Context, downloadLink, dir string) (string, error) {
	values := url.Values{}
	values.Set("u", downloadLink)
	values.Set("d", dir)
	path, err := c.api.GetText(ctx, "/unzipsubtitle", values)
	if err != nil {
		return "", fmt.Errorf("unzip subtitle: %w", err)
	}
	if path == "" {
		return "", fmt.Errorf("unzip subtitle: empty path")
	}
	return path, nil
}

// Trailer resolves a hosted video id into a directly playable URL.
func (c *Client) Trailer(ctx context.Context, videoID string) (string, error) {
	values := url.Values{}
	values.Set("i", videoID)
	resolved, err := c.api.GetText(ctx, "/trailer", values)
	if err != nil {
		return "", fmt.Errorf("resolve trailer %s: %w", videoID, err)
	}
	return resolved, nil
}

// Autocomplete returns up to limit title suggestions for a partial query.
// Requests are throttled; a caller typing quickly waits for its turn or gives
// up when ctx ends.
func (c *Client) Autocomplete(ctx context.Context, text string, limit int) ([]string, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < 3 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	values := url.Values{}
	values.Set("q", text)
	if limit > 0 {
		values.Set("l", strconv.Itoa(limit))
	}
	var items []Suggestion
	if err := c.api.GetJSON(ctx, "/autocomplete", values, &items); err != nil {
		return nil, fmt.Errorf("autocomplete: %w", err)
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		if item.Title != "" {
			titles = append(titles, item.Title)
		}
	}
	return titles, nil
}
