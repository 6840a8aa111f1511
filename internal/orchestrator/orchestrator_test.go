//go:build linux

package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/five82/skiff/internal/clock"
	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/gateway"
	"github.com/five82/skiff/internal/player"
	"github.com/five82/skiff/internal/process"
	"github.com/five82/skiff/internal/readiness"
	"github.com/five82/skiff/internal/session"
	"github.com/five82/skiff/internal/streamd"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	unit = 5 * time.Millisecond
	mb   = 1024 * 1024
)

// script builds a template whose appended arguments become "$@".
func script(label, body string) session.Template {
	return session.Template{Binary: "/bin/sh", Args: []string{"-c", body, label}}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *recordingSink) states() []State {
	var out []State
	for _, e := range s.snapshot() {
		if sc, ok := e.(StateChanged); ok {
			out = append(out, sc.To)
		}
	}
	return out
}

func find[T Event](s *recordingSink) (T, bool) {
	for _, e := range s.snapshot() {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// recordingSupervisor logs starts and stops by the template label ($0).
type recordingSupervisor struct {
	inner *process.Supervisor

	mu     sync.Mutex
	labels map[*process.Handle]string
	log    []string
}

func (r *recordingSupervisor) Start(c process.Command) (*process.Handle, error) {
	h, err := r.inner.Start(c)
	if err != nil {
		return nil, err
	}
	label := c.Name()
	if len(c.Args) > 2 {
		label = c.Args[2]
	}
	r.mu.Lock()
	r.labels[h] = label
	r.log = append(r.log, "start:"+label)
	r.mu.Unlock()
	return h, nil
}

func (r *recordingSupervisor) Stop(ctx context.Context, h *process.Handle, opts process.StopOptions) {
	r.mu.Lock()
	r.log = append(r.log, "stop:"+r.labels[h])
	r.mu.Unlock()
	r.inner.Stop(ctx, h, opts)
}

func (r *recordingSupervisor) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeMetadata struct {
	mu           sync.Mutex
	statusErr    error
	trailer      string
	trailerErr   error
	subs         []gateway.Subtitle
	failUnzip    map[string]bool
	lastQuery    gateway.ListQuery
	trailerCalls int
}

func (f *fakeMetadata) Status(context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return map[string]any{"ok": true}, nil
}

func (f *fakeMetadata) Shutdown(context.Context) error { return nil }

func (f *fakeMetadata) Top(_ context.Context, q gateway.ListQuery) ([]gateway.Movie, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	return []gateway.Movie{{ID: 1, Title: "Sample", MagnetLink: "magnet:?xt=urn:btih:abc"}}, nil
}

func (f *fakeMetadata) Search(_ context.Context, q gateway.ListQuery) ([]gateway.Movie, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	return nil, nil
}

func (f *fakeMetadata) Summary(_ context.Context, m gateway.Movie) (gateway.Summary, error) {
	return gateway.Summary{ID: m.ID, ImdbID: "tt0000001", Video: "M3YVTgTl-F0"}, nil
}

func (f *fakeMetadata) Subtitles(context.Context, gateway.SubtitleQuery) ([]gateway.Subtitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs, nil
}

func (f *fakeMetadata) UnzipSubtitle(_ context.Context, link, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUnzip[link] {
		return "", errors.New("archive corrupt")
	}
	return filepath.Join(dir, link+".srt"), nil
}

func (f *fakeMetadata) Trailer(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trailerCalls++
	return f.trailer, f.trailerErr
}

func (f *fakeMetadata) Autocomplete(_ context.Context, text string, limit int) ([]string, error) {
	return []string{text + " one"}, nil
}

type fakeStream struct {
	mu         sync.Mutex
	calls      int
	readyAfter int // 0 never becomes ready
	shutdowns  int
}

func (f *fakeStream) Status(context.Context) (streamd.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.readyAfter > 0 && f.calls >= f.readyAfter {
		return streamd.Snapshot{State: 3, Name: "Sample", TotalDownload: 13 * mb}, nil
	}
	return streamd.Snapshot{State: 3, TotalDownload: mb}, nil
}

func (f *fakeStream) LargestFileURL(context.Context) (string, error) {
	return "http://127.0.0.1:5001/files/sample.mkv", nil
}

func (f *fakeStream) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdowns++
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticSettings config.Settings

func (s staticSettings) Settings() config.Settings { return config.Settings(s) }

type harness struct {
	o      *Orchestrator
	sink   *recordingSink
	meta   *fakeMetadata
	stream *fakeStream
	sup    *recordingSupervisor
	dir    string
}

func newHarness(t *testing.T, playerBody string, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		sink:   &recordingSink{},
		meta:   &fakeMetadata{},
		stream: &fakeStream{readyAfter: 3},
		sup:    &recordingSupervisor{inner: process.NewSupervisor(zerolog.Nop(), clock.Real{}), labels: map[*process.Handle]string{}},
		dir:    t.TempDir(),
	}
	cfg := Config{
		Gateway:       session.GatewayConfig{Command: script("gateway", "exec sleep 30"), Bind: "127.0.0.1:7314"},
		Stream:        script("stream", "exec sleep 30"),
		StreamBind:    "127.0.0.1:5001",
		Player:        script("player", playerBody),
		PlayerOptions: player.Options{Kind: player.MPV},
		Unit:          unit,
		ThresholdMB:   readiness.DefaultThresholdMB,
		ScratchDir:    h.dir,
		CacheDir:      filepath.Join(h.dir, "cache"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.o = New(cfg, Deps{
		Supervisor: h.sup,
		Metadata:   h.meta,
		Stream:     h.stream,
		Settings:   staticSettings(config.DefaultSettings()),
		Sink:       h.sink,
		Log:        zerolog.Nop(),
	})
	t.Cleanup(func() { h.o.Close(context.Background()) })
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.o.Start(context.Background()))
	require.Equal(t, Browsing, h.o.State())
}

func waitState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return o.State() == want }, 5*time.Second, 5*time.Millisecond, "never reached %s (at %s)", want, o.State())
}

func waitEvent[T Event](t *testing.T, s *recordingSink) T {
	t.Helper()
	var got T
	require.Eventually(t, func() bool {
		var ok bool
		got, ok = find[T](s)
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

func TestStart_GatewayReady(t *testing.T) {
	h := newHarness(t, "exit 0", nil)
	h.start(t)

	assert.Equal(t, []State{GatewayStarting, Browsing}, h.sink.states())
	_, ok := find[GatewayReady](h.sink)
	assert.True(t, ok)
}

func TestStart_GatewayUnavailable(t *testing.T) {
	h := newHarness(t, "exit 0", nil)
	h.meta.statusErr = errors.New("connection refused")

	err := h.o.Start(context.Background())
	require.ErrorIs(t, err, session.ErrGatewayUnavailable)
	assert.Equal(t, Idle, h.o.State())
	assert.Equal(t, []string{"start:gateway", "stop:gateway"}, h.sup.entries())

	_, err = h.o.Top(context.Background(), 0, false)
	require.ErrorIs(t, err, ErrNotBrowsing)
}

func TestBrowse_UsesSettingsAndSelect(t *testing.T) {
	h := newHarness(t, "exit 0", nil)
	h.start(t)

	movies, err := h.o.Top(context.Background(), gateway.CategoryTV, true)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	q := h.meta.lastQuery
	assert.Equal(t, gateway.CategoryTV, q.Category)
	assert.Equal(t, 30, q.Limit)
	assert.Equal(t, 90, q.Days)
	assert.True(t, q.Force)

	summary, err := h.o.Select(context.Background(), movies[0])
	require.NoError(t, err)
	assert.Equal(t, "tt0000001", summary.ImdbID)
	assert.Equal(t, Summary, h.o.State())

	h.o.Back(context.Background())
	assert.Equal(t, Browsing, h.o.State())

	_, err = h.o.Search(context.Background(), 0, "big one")
	require.NoError(t, err)
	q = h.meta.lastQuery
	assert.Equal(t, gateway.CategoryMovies, q.Category)
	assert.Equal(t, "big one", q.Query)
	assert.False(t, q.Force)

	suggestions, err := h.o.Suggest(context.Background(), "big")
	require.NoError(t, err)
	assert.Equal(t, []string{"big one"}, suggestions)
}

func TestPlayMagnet_FullFlow(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	h := newHarness(t, `echo "$@" > `+argsFile+`; sleep 0.2`, nil)
	h.meta.subs = []gateway.Subtitle{{DownloadLink: "a"}, {DownloadLink: "b"}, {DownloadLink: "c"}, {DownloadLink: "d"}}
	h.meta.failUnzip = map[string]bool{"b": true}
	h.start(t)

	movie := gateway.Movie{ID: 1, Title: "Sample Movie", Year: "2001"}
	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc", Movie: movie}))

	waitEvent[PlaybackFinished](t, h.sink)
	waitState(t, h.o, Browsing)

	assert.Equal(t, []State{GatewayStarting, Browsing, StreamStarting, Buffering, Playing, Browsing}, h.sink.states())

	started := waitEvent[PlaybackStarted](t, h.sink)
	assert.Equal(t, "Sample", started.Title)
	finished, _ := find[PlaybackFinished](h.sink)
	assert.Equal(t, 0, finished.ExitCode)

	progress, ok := find[Progress](h.sink)
	require.True(t, ok)
	assert.Equal(t, readiness.Continue, progress.Result.Decision)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	line := string(args)
	assert.Contains(t, line, "http://127.0.0.1:5001/files/sample.mkv")
	assert.Contains(t, line, "--sub-file "+filepath.Join(h.dir, "a.srt")+" --sub-file "+filepath.Join(h.dir, "c.srt"))
	assert.NotContains(t, line, "b.srt")
	assert.NotContains(t, line, "d.srt")
	assert.Contains(t, line, "--title Sample")

	// The stream daemon is shut down once the player exits.
	h.stream.mu.Lock()
	assert.Equal(t, 1, h.stream.shutdowns)
	h.stream.mu.Unlock()
}

func TestPlayMagnet_NewAttemptTearsDownPlayerThenStream(t *testing.T) {
	h := newHarness(t, "exec sleep 30", nil)
	h.stream.readyAfter = 1
	h.start(t)

	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc"}))
	waitEvent[PlaybackStarted](t, h.sink)

	h.stream.mu.Lock()
	h.stream.readyAfter = 0
	h.stream.mu.Unlock()
	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:def"}))
	waitState(t, h.o, Buffering)

	entries := h.sup.entries()
	require.GreaterOrEqual(t, len(entries), 6)
	assert.Equal(t, []string{
		"start:gateway",
		"start:stream",
		"start:player",
		"stop:player",
		"stop:stream",
		"start:stream",
	}, entries[:6])
}

func TestPlayURL_DirectBypassesStream(t *testing.T) {
	h := newHarness(t, "sleep 0.05", nil)
	h.start(t)

	require.NoError(t, h.o.PlayURL(context.Background(), "http://example.com/video.mp4", "Clip"))
	waitEvent[PlaybackFinished](t, h.sink)
	waitState(t, h.o, Browsing)

	assert.Equal(t, []State{GatewayStarting, Browsing, Playing, Browsing}, h.sink.states())
	assert.NotContains(t, h.sink.states(), StreamStarting)
	assert.Zero(t, h.stream.statusCalls())
	for _, e := range h.sup.entries() {
		assert.NotContains(t, e, "stream")
	}
}

func TestPlayURL_HostedResolvedThroughGateway(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	h := newHarness(t, `echo "$@" > `+argsFile, nil)
	h.meta.trailer = "https://cdn.example.com/trailer.mp4"
	h.start(t)

	require.NoError(t, h.o.PlayURL(context.Background(), "https://www.youtube.com/watch?v=M3YVTgTl-F0", "Trailer"))
	waitEvent[PlaybackFinished](t, h.sink)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(args), "https://cdn.example.com/trailer.mp4"))
}

func TestPlayURL_UnresolvableHasNoSideEffects(t *testing.T) {
	h := newHarness(t, "exit 0", nil)
	h.meta.trailerErr = errors.New("video unavailable")
	h.start(t)
	before := h.sup.entries()

	err := h.o.PlayURL(context.Background(), "https://youtu.be/M3YVTgTl-F0", "Trailer")
	require.ErrorIs(t, err, ErrNoPlayableURL)

	notice, ok := find[Notice](h.sink)
	require.True(t, ok)
	assert.Equal(t, "No playable URL", notice.Message)
	assert.Equal(t, 1, h.meta.trailerCalls)
	assert.Equal(t, Browsing, h.o.State())
	assert.Equal(t, before, h.sup.entries())
}

func TestBack_DuringBufferingCancels(t *testing.T) {
	h := newHarness(t, "exit 0", nil)
	h.stream.readyAfter = 0
	h.start(t)

	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc"}))
	waitState(t, h.o, Buffering)
	require.Eventually(t, func() bool { return h.stream.statusCalls() >= 2 }, 5*time.Second, time.Millisecond)

	h.o.Back(context.Background())
	assert.Equal(t, Browsing, h.o.State())
	assert.NotContains(t, h.sink.states(), Playing)

	calls := h.stream.statusCalls()
	time.Sleep(10 * unit)
	assert.Equal(t, calls, h.stream.statusCalls(), "buffering loop kept polling after Back")
	assert.Equal(t, []string{"start:gateway", "start:stream", "stop:stream"}, h.sup.entries())
}

func TestPlayMagnet_BufferTimeout(t *testing.T) {
	h := newHarness(t, "exit 0", func(c *Config) { c.BufferTimeout = 10 * unit })
	h.stream.readyAfter = 0
	h.start(t)

	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc"}))
	require.Eventually(t, func() bool {
		n, ok := find[Notice](h.sink)
		return ok && errors.Is(n.Err, readiness.ErrBufferTimeout)
	}, 5*time.Second, 5*time.Millisecond)
	waitState(t, h.o, Browsing)
}

func TestPlayMagnet_StreamDaemonExitEndsBuffering(t *testing.T) {
	h := newHarness(t, "exit 0", func(c *Config) {
		c.Stream = script("stream", "exit 1")
		c.BufferTimeout = 0
	})
	h.stream.readyAfter = 0
	h.start(t)

	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc"}))
	notice := waitEvent[Notice](t, h.sink)
	assert.Equal(t, "Stream daemon exited", notice.Message)
	require.ErrorIs(t, notice.Err, ErrStreamExited)
	waitState(t, h.o, Browsing)
	assert.NotContains(t, h.sink.states(), Playing)

	calls := h.stream.statusCalls()
	time.Sleep(10 * unit)
	assert.Equal(t, calls, h.stream.statusCalls(), "kept polling a dead daemon")
}

func TestClose_StopsEverything(t *testing.T) {
	h := newHarness(t, "exec sleep 30", nil)
	h.stream.readyAfter = 1
	h.start(t)

	require.NoError(t, h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc"}))
	waitEvent[PlaybackStarted](t, h.sink)

	h.o.Close(context.Background())
	assert.Equal(t, Idle, h.o.State())

	entries := h.sup.entries()
	assert.Equal(t, []string{"stop:player", "stop:stream", "stop:gateway"}, entries[len(entries)-3:])

	err := h.o.PlayMagnet(context.Background(), PlayRequest{Locator: "magnet:?xt=urn:btih:abc"})
	require.ErrorIs(t, err, ErrClosed)
	h.o.Close(context.Background())
}
