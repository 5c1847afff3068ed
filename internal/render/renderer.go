package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer writes a parsed answer to an output stream.
type Renderer interface {
	Render(res Result) error
}

// New returns the renderer for format ("text" or "json").
func New(format string, w io.Writer) (Renderer, error) {
	switch format {
	case "", "text":
		return NewTextRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// ---------------------------------------------------------------------------
// Text Renderer (styled terminal output)
// ---------------------------------------------------------------------------

// TextRenderer prints explanations as titled sections.
type TextRenderer struct {
	w       io.Writer
	heading lipgloss.Style
	body    lipgloss.Style
	code    lipgloss.Style
	muted   lipgloss.Style
}

// NewTextRenderer styles for w, so colors are dropped when w is not a terminal.
func NewTextRenderer(w io.Writer) *TextRenderer {
	lr := lipgloss.NewRenderer(w)
	return &TextRenderer{
		w:       w,
		heading: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		body:    lr.NewStyle().PaddingLeft(2),
		code: lr.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#16858E")).
			Padding(0, 1),
		muted: lr.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (r *TextRenderer) Render(res Result) error {
	var b strings.Builder

	if !res.IsStructured() {
		b.WriteString(r.heading.Render("Explanation"))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(res.Raw))
		b.WriteString("\n")
		_, err := io.WriteString(r.w, b.String())
		return err
	}

	s := res.Structured
	r.section(&b, "Meaning", s.Meaning)
	r.section(&b, "Why it happened", s.Cause)
	if s.FixCode != "" {
		b.WriteString(r.heading.Render("Fix"))
		b.WriteString("\n")
		b.WriteString(r.code.Render(s.FixCode))
		b.WriteString("\n\n")
	}
	r.section(&b, "Prevention", s.Prevention)

	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.section(&b, k, s.Extra[k])
	}

	_, err := io.WriteString(r.w, strings.TrimRight(b.String(), "\n")+"\n")
	return err
}

func (r *TextRenderer) section(b *strings.Builder, title, text string) {
	if text == "" {
		return
	}
	b.WriteString(r.heading.Render(title))
	b.WriteString("\n")
	b.WriteString(r.body.Render(text))
	b.WriteString("\n\n")
}

// Note prints a dimmed single line, used for status and hints.
func (r *TextRenderer) Note(format string, args ...interface{}) {
	fmt.Fprintln(r.w, r.muted.Render(fmt.Sprintf(format, args...)))
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each result as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(res Result) error {
	return r.enc.Encode(res)
}
