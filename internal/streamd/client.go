// Package streamd is the client for the torrent streaming daemon's control
// plane: buffering status, the served file listing, and shutdown.
package streamd

import (
	"context"
	"fmt"

	"github.com/five82/skiff/internal/httpapi"
)

// DefaultBind is where the stream daemon listens unless configured otherwise.
const DefaultBind = "127.0.0.1:5001"

// StateStreaming is the first daemon state code past metadata fetching;
// buffering progress is only meaningful from here on.
const StateStreaming = 3

// Snapshot mirrors /status. It is passed around by value and never mutated.
type Snapshot struct {
	Name          string  `json:"name"`
	State         int     `json:"state"`
	StateStr      string  `json:"state_str"`
	Error         string  `json:"error"`
	Progress      float64 `json:"progress"`
	DownloadRate  float64 `json:"download_rate"`
	UploadRate    float64 `json:"upload_rate"`
	TotalDownload int64   `json:"total_download"`
	TotalUpload   int64   `json:"total_upload"`
	NumPeers      int     `json:"num_peers"`
	NumSeeds      int     `json:"num_seeds"`
	TotalSeeds    int     `json:"total_seeds"`
	TotalPeers    int     `json:"total_peers"`
}

// DownloadedMB converts TotalDownload to megabytes.
func (s Snapshot) DownloadedMB() float64 {
	return float64(s.TotalDownload) / (1024 * 1024)
}

// File mirrors one entry of /ls.
type File struct {
	Name     string  `json:"name"`
	SavePath string  `json:"save_path"`
	URL      string  `json:"url"`
	Size     int64   `json:"size"`
	Offset   int64   `json:"offset"`
	Download int64   `json:"download"`
	Progress float64 `json:"progress"`
}

type listing struct {
	Files []File `json:"files"`
}

// Client talks to the stream daemon HTTP API.
type Client struct {
	api *httpapi.Client
}

// NewClient builds a Client using the provided bind host:port value.
func NewClient(bind string) (*Client, error) {
	api, err := httpapi.New(bind, DefaultBind)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Status fetches the current buffering snapshot.
func (c *Client) Status(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := c.api.GetJSON(ctx, "/status", nil, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Files lists the files the daemon serves for the current torrent.
func (c *Client) Files(ctx context.Context) ([]File, error) {
	var payload listing
	if err := c.api.GetJSON(ctx, "/ls", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Files, nil
}

// LargestFileURL returns the URL of the biggest served file, which for a
// single release is the video itself.
func (c *Client) LargestFileURL(ctx context.Context) (string, error) {
	files, err := c.Files(ctx)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	largest, ok := Largest(files)
	if !ok || largest.URL == "" {
		return "", fmt.Errorf("list files: no playable file")
	}
	return largest.URL, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.api.Fire(ctx, "/shutdown")
}

// Largest picks the biggest file. Ties keep the first entry.
func Largest(files []File) (File, bool) {
	if len(files) == 0 {
		return File{}, false
	}
	best := files[0]
	for _, f := range files[1:] {
		if f.Size > best.Size {
			best = f
		}
	}
	return best, true
}
