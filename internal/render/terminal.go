package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Terminal renders a markdown reply for a terminal using a fixed glamour
// style ("dark", "light", "notty", ...). The cleaned markdown is returned
// unchanged if rendering fails.
func Terminal(markdown, style string, width int) string {
	text := Preprocess(markdown)
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
