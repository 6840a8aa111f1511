package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderMain renders header, command bar, content and status bar.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	height := max(m.height-3, 1)
	var content string
	switch m.view {
	case ViewBrowse:
		if m.search.active {
			search := m.renderSearch()
			rest := max(height-lipgloss.Height(search), 1)
			list := m.movies
			list.SetSize(m.width, rest)
			content = lipgloss.JoinVertical(lipgloss.Left, search, list.View())
		} else {
			content = m.renderBrowse()
		}
	case ViewSummary:
		content = m.renderSummary()
	case ViewPlayback:
		content = m.renderPlayback()
	case ViewLogs:
		content = m.renderLogs()
	}
	return lipgloss.NewStyle().Width(m.width).Height(height).MaxHeight(height).Render(content)
}

// renderHeader renders the logo, the orchestrator state badge and the listing.
func (m Model) renderHeader() string {
	bg := NewBgStyle(m.theme.Surface)
	styles := m.theme.Styles()

	parts := []string{
		bg.Render("skiff", styles.Logo),
		styles.StatusStyle(m.snapshot.State.String()).Render(titleCase(m.snapshot.State.String())),
		bg.Render(m.listingLabel(), styles.Text),
	}
	if m.loading {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText))
	}
	return bg.FillLine(bg.Join(parts, "  "), m.width)
}

// renderCommandBar lists the keys of the current view.
func (m Model) renderCommandBar() string {
	bg := NewBgStyle(m.theme.SurfaceAlt)
	styles := m.theme.Styles()

	var cmds [][2]string
	switch m.view {
	case ViewBrowse:
		if m.search.active {
			cmds = [][2]string{{"enter", "search"}, {"tab", "complete"}, {"ctrl+n", "next"}, {"esc", "cancel"}}
		} else {
			cmds = [][2]string{{"enter", "open"}, {"/", "search"}, {"c", "category"}, {"r", "refresh"}}
			if m.query != "" {
				cmds = append(cmds, [2]string{"esc", "top list"})
			}
		}
	case ViewSummary:
		cmds = [][2]string{{"enter", "play"}, {"t", "trailer"}, {"esc", "back"}}
	case ViewPlayback:
		cmds = [][2]string{{"esc", "stop"}}
	case ViewLogs:
		cmds = [][2]string{{"space", "follow"}, {"g/G", "top/bottom"}, {"esc", "back"}}
	}
	cmds = append(cmds, [2]string{"l", "logs"}, [2]string{"T", "theme"}, [2]string{"?", "help"}, [2]string{"e", "quit"})

	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		parts = append(parts, bg.Render("<"+c[0]+">", styles.AccentText)+bg.Space()+bg.Render(c[1], styles.MutedText))
	}
	return bg.FillLine(bg.Join(parts, "  "), m.width)
}

// renderStatusBar shows the latest notice, or the follow state in the logs view.
func (m Model) renderStatusBar() string {
	bg := NewBgStyle(m.theme.Surface)
	styles := m.theme.Styles().WithBackground(m.theme.Surface)

	text := ""
	style := styles.MutedText
	switch {
	case m.flash != "":
		text = m.flash
		style = styles.WarningText
	case m.view == ViewLogs && m.follow:
		text = "following " + m.logPath
	case m.view == ViewLogs:
		text = "paused"
	}
	return bg.FillLine(bg.Render(truncate(text, max(m.width-2, 1)), style), m.width)
}
