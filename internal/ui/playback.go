package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/skiff/internal/orchestrator"
	"github.com/five82/skiff/internal/state"
)

func (m Model) renderPlayback() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	var b strings.Builder
	switch snap.State {
	case orchestrator.StreamStarting:
		b.WriteString(m.spinner.View() + " " + styles.Text.Render("Starting stream..."))

	case orchestrator.Buffering:
		title := snap.Progress.Title
		if title == "" {
			title = snap.Stream.Name
		}
		if title == "" {
			title = m.selected.Title
		}
		b.WriteString(m.spinner.View() + " " + styles.Text.Bold(true).Render(truncate(title, max(m.width-8, 10))))
		b.WriteString("\n\n")
		b.WriteString(m.progress.ViewAs(snap.Progress.Percent / 100))
		b.WriteString(styles.MutedText.Render(fmt.Sprintf(" %3.0f%%", snap.Progress.Percent)))
		b.WriteString("\n\n")
		desc := snap.Progress.Description
		if !snap.HasProgress {
			desc = "Connecting..."
		}
		b.WriteString(styles.MutedText.Render(desc))

	case orchestrator.Playing:
		title := snap.Title
		if title == "" {
			title = m.selected.Title
		}
		b.WriteString(styles.SuccessText.Render("Playing"))
		if title != "" {
			b.WriteString(" " + styles.Text.Bold(true).Render(title))
		}
		if snap.HasProgress {
			b.WriteString("\n\n")
			b.WriteString(styles.MutedText.Render(snap.Progress.Description))
		}

	default:
		b.WriteString(m.spinner.View() + " " + styles.MutedText.Render("Waiting..."))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("esc stop"))

	return lipgloss.Place(m.width, max(m.height-3, 1), lipgloss.Center, lipgloss.Center, b.String())
}

// finishedText describes how the last playback ended.
func finishedText(snap state.Snapshot) string {
	if snap.ExitCode == 0 {
		return "Playback finished"
	}
	return fmt.Sprintf("Player exited with code %d", snap.ExitCode)
}
