package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// minSuggestLength matches the gateway's autocomplete threshold.
const minSuggestLength = 3

// searchState holds the search prompt and its autocomplete suggestions.
type searchState struct {
	active      bool
	input       textinput.Model
	suggestions []string
	index       int
	requested   string // text of the latest suggestion request
}

func newSearchState() searchState {
	ti := textinput.New()
	ti.Placeholder = "Search titles..."
	ti.Prompt = "/ "
	ti.CharLimit = 100
	return searchState{input: ti}
}

// open shows the prompt seeded with the current query.
func (s *searchState) open(query string) tea.Cmd {
	s.active = true
	s.input.SetValue(query)
	s.input.CursorEnd()
	s.suggestions = nil
	s.index = 0
	s.requested = ""
	return s.input.Focus()
}

func (s *searchState) close() {
	s.active = false
	s.input.Blur()
	s.suggestions = nil
	s.requested = ""
}

// apply installs suggestions unless the text has moved on since the request.
func (s *searchState) apply(msg suggestionsMsg) {
	if !s.active || msg.text != s.requested {
		return
	}
	if msg.err != nil {
		s.suggestions = nil
		return
	}
	s.suggestions = msg.items
	s.index = 0
}

func (s searchState) current() string {
	if len(s.suggestions) == 0 {
		return ""
	}
	return s.suggestions[s.index%len(s.suggestions)]
}

// handleSearchKey processes keyboard input while the search prompt is open.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.search.close()
		return m, nil

	case key.Matches(msg, m.keys.Open):
		query := strings.TrimSpace(m.search.input.Value())
		m.search.close()
		if query == m.query {
			return m, nil
		}
		m.query = query
		m.loading = true
		return m, m.loadMoviesCmd(false)

	case key.Matches(msg, m.keys.AcceptSuggest):
		if s := m.search.current(); s != "" {
			m.search.input.SetValue(s)
			m.search.input.CursorEnd()
			m.search.suggestions = nil
		}
		return m, nil

	case key.Matches(msg, m.keys.NextSuggestion):
		if len(m.search.suggestions) > 0 {
			m.search.index = (m.search.index + 1) % len(m.search.suggestions)
		}
		return m, nil
	}

	before := m.search.input.Value()
	var cmd tea.Cmd
	m.search.input, cmd = m.search.input.Update(msg)
	after := strings.TrimSpace(m.search.input.Value())
	if m.search.input.Value() == before {
		return m, cmd
	}
	if len([]rune(after)) < minSuggestLength {
		m.search.suggestions = nil
		m.search.requested = ""
		return m, cmd
	}
	m.search.requested = after
	return m, tea.Batch(cmd, m.suggestCmd(after))
}

// suggestCmd asks for completions. The gateway client throttles these, so a
// fast typist queues behind the limiter and stale answers are dropped by apply.
func (m Model) suggestCmd(text string) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ControllerTimeout)
		defer cancel()
		items, err := ctrl.Suggest(ctx, text)
		return suggestionsMsg{text: text, items: items, err: err}
	}
}

func (m Model) renderSearch() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(m.search.input.View())
	for i, s := range m.search.suggestions {
		b.WriteString("\n  ")
		style := styles.MutedText
		if i == m.search.index%len(m.search.suggestions) {
			style = styles.AccentText.Bold(true)
		}
		b.WriteString(style.Render(s))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(0, 1).
		Width(max(m.width-4, 20))
	return box.Render(b.String())
}
