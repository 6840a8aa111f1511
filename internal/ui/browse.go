package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/skiff/internal/gateway"
)

// movieItem adapts gateway.Movie to list.DefaultItem.
type movieItem struct {
	movie gateway.Movie
}

func (i movieItem) Title() string { return i.movie.Title }

func (i movieItem) Description() string {
	parts := []string{}
	if desc := i.movie.Description(); desc != "" {
		parts = append(parts, desc)
	}
	if i.movie.SizeHuman != "" {
		parts = append(parts, i.movie.SizeHuman)
	}
	parts = append(parts, fmt.Sprintf("%d seeders", i.movie.Seeders))
	return strings.Join(parts, " · ")
}

func (i movieItem) FilterValue() string { return i.movie.Title }

func movieDelegate(t Theme) list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.NormalTitle = d.Styles.NormalTitle.Foreground(lipgloss.Color(t.Text))
	d.Styles.NormalDesc = d.Styles.NormalDesc.Foreground(lipgloss.Color(t.Muted))
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(lipgloss.Color(t.Accent)).
		BorderForeground(lipgloss.Color(t.BorderFocus))
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(lipgloss.Color(t.Muted)).
		BorderForeground(lipgloss.Color(t.BorderFocus))
	return d
}

func newMovieList(t Theme) list.Model {
	l := list.New(nil, movieDelegate(t), 0, 0)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("release", "releases")
	l.DisableQuitKeybindings()
	return l
}

func (m *Model) setMovies(movies []gateway.Movie) {
	items := make([]list.Item, len(movies))
	for i, mv := range movies {
		items[i] = movieItem{movie: mv}
	}
	m.movies.SetItems(items)
	m.movies.Select(0)
}

func (m Model) selectedMovie() (gateway.Movie, bool) {
	item, ok := m.movies.SelectedItem().(movieItem)
	if !ok {
		return gateway.Movie{}, false
	}
	return item.movie, true
}

// nextCategory cycles through gateway.Categories.
func nextCategory(c gateway.Category) gateway.Category {
	for i, cat := range gateway.Categories {
		if cat == c {
			return gateway.Categories[(i+1)%len(gateway.Categories)]
		}
	}
	return gateway.Categories[0]
}

// handleBrowseKey processes keyboard input for the browse view.
func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		movie, ok := m.selectedMovie()
		if !ok {
			return m, nil
		}
		m.loading = true
		return m, m.selectCmd(movie)

	case key.Matches(msg, m.keys.CycleCategory):
		m.category = nextCategory(m.category)
		m.loading = true
		m.savePrefs()
		return m, m.loadMoviesCmd(false)

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.loadMoviesCmd(true)

	case key.Matches(msg, m.keys.Search):
		cmd := m.search.open(m.query)
		return m, cmd
	}

	var cmd tea.Cmd
	m.movies, cmd = m.movies.Update(msg)
	return m, cmd
}

// loadMoviesCmd fetches the current listing: search results when a query is
// set, otherwise the category's top list.
func (m Model) loadMoviesCmd(force bool) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx, ctrl, category, query := m.ctx, m.ctrl, m.category, m.query
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ControllerTimeout)
		defer cancel()
		var (
			movies []gateway.Movie
			err    error
		)
		if query != "" {
			movies, err = ctrl.Search(ctx, category, query)
		} else {
			movies, err = ctrl.Top(ctx, category, force)
		}
		return moviesMsg{category: category, query: query, movies: movies, err: err}
	}
}

func (m Model) selectCmd(movie gateway.Movie) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ControllerTimeout)
		defer cancel()
		summary, err := ctrl.Select(ctx, movie)
		return summaryMsg{movie: movie, summary: summary, err: err}
	}
}

func (m Model) renderBrowse() string {
	styles := m.theme.Styles()
	if len(m.movies.Items()) == 0 {
		msg := "No releases"
		if m.loading {
			msg = m.spinner.View() + " Loading " + m.listingLabel() + "..."
		}
		return lipgloss.Place(m.width, max(m.height-3, 1), lipgloss.Center, lipgloss.Center, styles.MutedText.Render(msg))
	}
	return m.movies.View()
}

// listingLabel names the current listing for the header.
func (m Model) listingLabel() string {
	if m.query != "" {
		return fmt.Sprintf("%q in %s", m.query, m.category.Label())
	}
	return m.category.Label()
}
