package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/skiff/internal/gateway"
	"github.com/five82/skiff/internal/logtail"
	"github.com/five82/skiff/internal/orchestrator"
	"github.com/five82/skiff/internal/prefs"
	"github.com/five82/skiff/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewBrowse View = iota
	ViewSummary
	ViewPlayback
	ViewLogs
)

// Controller is the part of the orchestrator the UI drives. Every call may
// block on the gateway or on process teardown, so the model only invokes it
// from commands.
type Controller interface {
	Top(ctx context.Context, category gateway.Category, force bool) ([]gateway.Movie, error)
	Search(ctx context.Context, category gateway.Category, query string) ([]gateway.Movie, error)
	Suggest(ctx context.Context, text string) ([]string, error)
	Select(ctx context.Context, m gateway.Movie) (gateway.Summary, error)
	Back(ctx context.Context)
	PlayMagnet(ctx context.Context, req orchestrator.PlayRequest) error
	PlayURL(ctx context.Context, rawURL, title string) error
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Controller Controller
	Store      *state.Store
	LogPath    string
	Category   gateway.Category
	PollTick   time.Duration
	ThemeName  string
	PrefsPath  string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	ctrl      Controller
	store     *state.Store
	logPath   string
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	// UI state
	theme    Theme
	view     View
	prevView View
	width    int
	height   int
	ready    bool
	showHelp bool

	// Data state
	snapshot  state.Snapshot
	noticeSeq int
	flash     string
	flashAt   time.Time

	// Browse state
	category gateway.Category
	query    string
	movies   list.Model
	loading  bool
	search   searchState

	// Summary state
	selected gateway.Movie
	summary  gateway.Summary

	// Playback state
	launched bool
	progress progress.Model
	spinner  spinner.Model

	// Log state
	logViewport viewport.Model
	logEntries  []logtail.Entry
	follow      bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = DefaultUIInterval
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	category := opts.Category
	if category == 0 {
		category = gateway.CategoryMovies
	}

	theme := GetTheme(themeName)
	m := Model{
		ctx:       ctx,
		ctrl:      opts.Controller,
		store:     opts.Store,
		logPath:   opts.LogPath,
		prefsPath: prefsPath,
		pollTick:  pollTick,
		keys:      DefaultKeyMap(),
		theme:     theme,
		view:      ViewBrowse,
		category:  category,
		loading:   true,
		follow:    true,
		progress:  progress.New(progress.WithSolidFill(theme.Accent), progress.WithoutPercentage()),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.movies = newMovieList(theme)
	m.search = newSearchState()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
		m.spinner.Tick,
		m.loadMoviesCmd(false),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case moviesMsg:
		return m.handleMovies(msg), nil

	case summaryMsg:
		return m.handleSummary(msg), nil

	case suggestionsMsg:
		m.search.apply(msg)
		return m, nil

	case playMsg:
		return m.handlePlay(msg), nil

	case backMsg:
		return m, nil

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	// Show help overlay if active
	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle help overlay
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	// The search prompt owns the keyboard while it is open
	if m.search.active {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.setTheme(GetTheme(NextTheme(m.theme.Name)))
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		if m.view != ViewLogs {
			m.prevView = m.view
			m.view = ViewLogs
			m.follow = true
		}
		return m, m.readLogsCmd()

	case key.Matches(msg, m.keys.Escape):
		return m.handleEscape()
	}

	// View-specific keys
	switch m.view {
	case ViewBrowse:
		return m.handleBrowseKey(msg)
	case ViewSummary:
		return m.handleSummaryKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}

	return m, nil
}

// handleEscape leaves the current view. Leaving the summary or playback also
// tells the orchestrator, which tears down any running attempt.
func (m Model) handleEscape() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewLogs:
		m.view = m.prevView
		return m, nil
	case ViewSummary, ViewPlayback:
		m.view = ViewBrowse
		m.launched = false
		return m, m.backCmd()
	case ViewBrowse:
		if m.query != "" {
			m.query = ""
			m.loading = true
			return m, m.loadMoviesCmd(false)
		}
	}
	return m, nil
}

// handleTick reads the store and schedules the next tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}

	if m.store != nil {
		m.applySnapshot(m.store.Snapshot())
	}
	if m.flash != "" && time.Since(m.flashAt) > FlashDuration {
		m.flash = ""
	}

	if m.view == ViewLogs && m.follow {
		cmds = append(cmds, m.readLogsCmd())
	}

	return m, tea.Batch(cmds...)
}

// applySnapshot takes in the orchestrator view. The playback view closes once
// the launched attempt is over.
func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if snap.Notice.Seq > m.noticeSeq {
		m.noticeSeq = snap.Notice.Seq
		m.setFlash(snap.Notice.Text())
	}
	if m.launched && !snap.State.Active() {
		m.launched = false
		if m.view == ViewPlayback {
			m.view = ViewBrowse
		} else if m.view == ViewLogs && m.prevView == ViewPlayback {
			m.prevView = ViewBrowse
		}
		if snap.Finished {
			m.setFlash(finishedText(snap))
		}
	}
}

func (m Model) handleMovies(msg moviesMsg) Model {
	if msg.category != m.category || msg.query != m.query {
		return m // stale response for a previous listing
	}
	m.loading = false
	if msg.err != nil {
		m.setFlash("Listing failed: " + msg.err.Error())
		return m
	}
	m.setMovies(msg.movies)
	return m
}

func (m Model) handleSummary(msg summaryMsg) Model {
	m.loading = false
	if msg.err != nil {
		m.setFlash("Summary failed: " + msg.err.Error())
		return m
	}
	m.selected = msg.movie
	m.summary = msg.summary
	m.view = ViewSummary
	return m
}

func (m Model) handlePlay(msg playMsg) Model {
	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			m.setFlash(msg.err.Error())
		}
		return m
	}
	m.launched = true
	m.view = ViewPlayback
	if m.store != nil {
		m.applySnapshot(m.store.Snapshot())
	}
	return m
}

func (m *Model) setFlash(text string) {
	m.flash = strings.TrimSpace(text)
	m.flashAt = time.Now()
}

func (m *Model) setTheme(t Theme) {
	m.theme = t
	m.progress = progress.New(progress.WithSolidFill(t.Accent), progress.WithoutPercentage())
	m.movies.SetDelegate(movieDelegate(t))
	m.resize()
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Category: int(m.category)})
}

// resize lays out the sized components for the current window.
func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	contentHeight := max(m.height-3, 1) // header, command bar, status bar
	m.movies.SetSize(m.width, contentHeight)
	m.progress.Width = max(min(m.width-8, 60), 10)
	m.logViewport.Width = m.width
	m.logViewport.Height = contentHeight
	m.search.input.Width = max(m.width-12, 10)
	m.refreshLogViewport()
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// options context is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Messages

type tickMsg time.Time

type moviesMsg struct {
	category gateway.Category
	query    string
	movies   []gateway.Movie
	err      error
}

type summaryMsg struct {
	movie   gateway.Movie
	summary gateway.Summary
	err     error
}

type suggestionsMsg struct {
	text  string
	items []string
	err   error
}

type playMsg struct {
	err error
}

type backMsg struct{}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
