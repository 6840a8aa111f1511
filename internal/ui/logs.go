package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/skiff/internal/logtail"
)

// readLogsCmd tails the log file off the update loop.
func (m Model) readLogsCmd() tea.Cmd {
	path := m.logPath
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, LogBufferLimit)
		return logsMsg{entries: entries, err: err}
	}
}

func (m *Model) handleLogs(msg logsMsg) {
	if msg.err != nil {
		m.setFlash("Log read failed: " + msg.err.Error())
		return
	}
	m.logEntries = msg.entries
	m.refreshLogViewport()
}

// refreshLogViewport re-renders the entries into the viewport.
func (m *Model) refreshLogViewport() {
	if m.logViewport.Width == 0 {
		return
	}
	lines := make([]string, len(m.logEntries))
	for i, e := range m.logEntries {
		lines[i] = m.renderLogEntry(e)
	}
	m.logViewport.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

// handleLogsKey processes keyboard input for the logs view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.logViewport.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.follow = false
		m.logViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	if !m.logViewport.AtBottom() {
		m.follow = false
	}
	return m, cmd
}

func (m Model) renderLogEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Level == "" && e.Time.IsZero() {
		return styles.MutedText.Render(e.Message)
	}

	parts := make([]string, 0, 4)
	if !e.Time.IsZero() {
		parts = append(parts, styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
	}
	if e.Level != "" {
		parts = append(parts, m.levelStyle(e.Level).Render(padRight(e.Level, 5)))
	}
	if e.Component != "" {
		parts = append(parts, styles.InfoText.Render("["+e.Component+"]"))
	}
	if e.Message != "" {
		parts = append(parts, styles.Text.Render(e.Message))
	}
	line := strings.Join(parts, " ")
	if len(e.Fields) > 0 {
		fields := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = f.Key + "=" + f.Value
		}
		line += " " + styles.MutedText.Render(strings.Join(fields, " "))
	}
	return line
}

func (m Model) levelStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch level {
	case "ERROR", "FATAL", "PANIC":
		return styles.DangerText
	case "WARN":
		return styles.WarningText.Bold(true)
	case "DEBUG", "TRACE":
		return styles.InfoText
	default:
		return styles.SuccessText
	}
}

func (m Model) renderLogs() string {
	if len(m.logEntries) == 0 {
		styles := m.theme.Styles()
		return lipgloss.Place(m.width, max(m.height-3, 1), lipgloss.Center, lipgloss.Center, styles.MutedText.Render("No log lines yet"))
	}
	return m.logViewport.View()
}
