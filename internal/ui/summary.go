package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/skiff/internal/gateway"
	"github.com/five82/skiff/internal/orchestrator"
)

var errNoTrailer = errors.New("no trailer for this release")

// handleSummaryKey processes keyboard input for the summary view.
func (m Model) handleSummaryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Play):
		return m, m.playMagnetCmd()
	case key.Matches(msg, m.keys.Trailer):
		return m, m.playTrailerCmd()
	}
	return m, nil
}

func (m Model) playMagnetCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	req := orchestrator.PlayRequest{
		Locator: m.selected.MagnetLink,
		Movie:   m.selected,
		ImdbID:  m.summary.ImdbID,
	}
	return func() tea.Msg {
		return playMsg{err: ctrl.PlayMagnet(ctx, req)}
	}
}

func (m Model) playTrailerCmd() tea.Cmd {
	trailer := m.summary.TrailerURL()
	if trailer == "" {
		return func() tea.Msg { return playMsg{err: errNoTrailer} }
	}
	ctx, ctrl, title := m.ctx, m.ctrl, trailerTitle(m.selected)
	return func() tea.Msg {
		return playMsg{err: ctrl.PlayURL(ctx, trailer, title)}
	}
}

func trailerTitle(mv gateway.Movie) string {
	if mv.Year == "" {
		return mv.Title + " - Trailer"
	}
	return fmt.Sprintf("%s (%s) - Trailer", mv.Title, mv.Year)
}

func (m Model) backCmd() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.Back(ctx)
		return backMsg{}
	}
}

func (m Model) renderSummary() string {
	styles := m.theme.Styles()
	mv, s := m.selected, m.summary
	width := min(max(m.width-4, 20), LayoutSummaryWidth)

	var b strings.Builder
	title := mv.Title
	if desc := mv.Description(); desc != "" {
		title += " (" + desc + ")"
	}
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n")
	if s.TagLine != "" {
		b.WriteString(styles.MutedText.Italic(true).Render(s.TagLine))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	rows := []struct{ label, value string }{
		{"Rating", ratingText(s.Rating)},
		{"Runtime", runtimeText(s.Runtime)},
		{"Genre", strings.Join(s.Genre, ", ")},
		{"Director", s.Director},
		{"Cast", strings.Join(s.Cast, ", ")},
		{"Size", mv.SizeHuman},
		{"Seeders", fmt.Sprintf("%d", mv.Seeders)},
		{"Release", mv.Release},
	}
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning)).Width(10)
	for _, row := range rows {
		if strings.TrimSpace(row.value) == "" {
			continue
		}
		b.WriteString(labelStyle.Render(row.label))
		b.WriteString(styles.Text.Render(truncate(row.value, width-10)))
		b.WriteString("\n")
	}

	if s.Overview != "" {
		b.WriteString("\n")
		b.WriteString(styles.Text.Width(width).Render(s.Overview))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	actions := "enter play"
	if s.TrailerURL() != "" {
		actions += " · t trailer"
	}
	actions += " · esc back"
	b.WriteString(styles.FaintText.Render(actions))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func ratingText(r float64) string {
	if r <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f/10", r)
}

func runtimeText(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
