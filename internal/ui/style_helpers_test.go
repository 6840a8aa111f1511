package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestBgStyleRenderKeepsWords(t *testing.T) {
	bg := NewBgStyle("#282A36")
	out := bg.Render("Gateway  Starting", lipgloss.NewStyle())
	for _, word := range []string{"Gateway", "Starting"} {
		if !strings.Contains(out, word) {
			t.Fatalf("Render dropped %q: %q", word, out)
		}
	}
	if bg.Render("", lipgloss.NewStyle()) != "" {
		t.Fatalf("empty text should render empty")
	}
}

func TestBgStyleFillLineWidth(t *testing.T) {
	bg := NewBgStyle("#282A36")
	line := bg.FillLine(bg.Join([]string{"a", "b"}, " | "), 20)
	if w := lipgloss.Width(line); w != 20 {
		t.Fatalf("FillLine width = %d, want 20", w)
	}
}
