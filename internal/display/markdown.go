package display

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders markdown for the terminal. The underlying glamour
// renderer is rebuilt only when the wrap width changes. Not safe for
// concurrent use.
type MarkdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render wraps md at width columns. If glamour fails the source text is
// returned unchanged so nothing is lost.
func (r *MarkdownRenderer) Render(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		r.renderer = tr
		r.width = width
	}
	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
