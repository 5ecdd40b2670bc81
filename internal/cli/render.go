package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// stackPalette maps stored stack colors to ANSI color numbers.
var stackPalette = map[string]lipgloss.Color{
	types.ColorRed:         lipgloss.Color("1"),
	types.ColorGreen:       lipgloss.Color("2"),
	types.ColorYellow:      lipgloss.Color("3"),
	types.ColorBlue:        lipgloss.Color("4"),
	types.ColorCyan:        lipgloss.Color("6"),
	types.ColorLightRed:    lipgloss.Color("9"),
	types.ColorLightGreen:  lipgloss.Color("10"),
	types.ColorLightYellow: lipgloss.Color("11"),
	types.ColorLightBlue:   lipgloss.Color("12"),
	types.ColorLightCyan:   lipgloss.Color("14"),
}

type styles struct {
	r     *lipgloss.Renderer
	bold  lipgloss.Style
	muted lipgloss.Style
	id    lipgloss.Style
	label lipgloss.Style
}

// newStyles builds styles for output written to w. Color is dropped when
// mode is "never", or "auto" and w is not a terminal.
func newStyles(w io.Writer, mode string) styles {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case types.ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case types.ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	default:
		if !isTerminal(w) {
			r.SetColorProfile(termenv.Ascii)
		}
	}
	return styles{
		r:     r,
		bold:  r.NewStyle().Bold(true),
		muted: r.NewStyle().Faint(true),
		id:    r.NewStyle().Foreground(lipgloss.Color("3")),
		label: r.NewStyle().Bold(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// stack renders a stack name in its color, bold when active.
func (s styles) stack(name, color string, active bool) string {
	st := s.r.NewStyle().Bold(active)
	if c, ok := stackPalette[color]; ok {
		st = st.Foreground(c)
	}
	return st.Render(name)
}

// pad right-pads an already rendered string to width, measured on plain.
func pad(rendered, plain string, width int) string {
	if n := width - len([]rune(plain)); n > 0 {
		return rendered + strings.Repeat(" ", n)
	}
	return rendered
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
