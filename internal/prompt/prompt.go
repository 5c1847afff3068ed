// Package prompt turns an error message, optional code and a detail level
// into the single user message sent to the completion endpoint.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Level is the requested depth of the explanation.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

// Format selects the answer shape requested from the model.
type Format string

const (
	// FormatJSON asks for a single JSON object with fixed keys.
	FormatJSON Format = "json"
	// FormatSections asks for a free-text answer split into sections.
	FormatSections Format = "sections"
)

// ErrUnknownLevel is returned for a level outside Levels().
var ErrUnknownLevel = errors.New("unknown explanation level")

// ErrUnknownFormat is returned for a format other than json or sections.
var ErrUnknownFormat = errors.New("unknown prompt format")

var tones = map[Level]string{
	Beginner:     "Explain like teaching a school student using simple words and examples.",
	Intermediate: "Use programming analogies and show quick fixes.",
	Advanced:     "Be concise and technical, focus on root causes.",
}

// Levels returns the selectable levels in display order.
func Levels() []Level {
	return []Level{Beginner, Intermediate, Advanced}
}

// ParseLevel maps user input to a Level, ignoring case and surrounding space.
func ParseLevel(s string) (Level, error) {
	for _, level := range Levels() {
		if strings.EqualFold(strings.TrimSpace(s), string(level)) {
			return level, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Tone returns the tone instruction for level.
func Tone(level Level) (string, error) {
	tone, ok := tones[level]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	return tone, nil
}

// Build renders the prompt. errorText and codeText are embedded verbatim,
// so callers redact them first when privacy mode is on.
func Build(errorText string, level Level, codeText string, format Format) (string, error) {
	tone, err := Tone(level)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI coding assistant that explains programming errors in %s terms.\n", strings.ToLower(string(level)))
	b.WriteString(tone)
	b.WriteString("\n\nError message:\n```\n")
	b.WriteString(strings.TrimSpace(errorText))
	b.WriteString("\n```\n")

	if strings.TrimSpace(codeText) != "" {
		b.WriteString("\nRelated code:\n```\n")
		b.WriteString(strings.TrimRight(codeText, "\n"))
		b.WriteString("\n```\n")
	}

	switch format {
	case FormatSections:
		b.WriteString(sectionsInstructions)
	case FormatJSON, "":
		b.WriteString(jsonInstructions)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return b.String(), nil
}

const sectionsInstructions = `
Please answer with these sections:
1. Meaning (in simple English)
2. Why it happened
3. One-line fix or code correction
4. Analogy (only if it helps)

Keep it friendly, short, and clear.
`

const jsonInstructions = `
Respond with exactly one JSON object and nothing else, using these keys:
{
  "meaning": "what the error means in plain language",
  "cause": "why it happened",
  "fix_code": "the corrected code or the command that fixes it",
  "prevention": "how to avoid it next time"
}
All values must be strings. Do not wrap the object in Markdown.
`
