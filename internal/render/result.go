// Package render interprets raw model answers and prints them.
package render

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tells whether an answer could be read as a structured object.
type Kind string

const (
	KindStructured Kind = "structured"
	KindRaw        Kind = "raw"
)

// Structured is the four-field explanation the JSON prompt asks for.
type Structured struct {
	Meaning    string            `json:"meaning"`
	Cause      string            `json:"cause"`
	FixCode    string            `json:"fix_code"`
	Prevention string            `json:"prevention"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Result is a parsed answer. Raw always holds the answer as received.
type Result struct {
	Kind       Kind        `json:"kind"`
	Structured *Structured `json:"structured,omitempty"`
	Raw        string      `json:"raw"`
}

// IsStructured reports whether the answer decoded as a JSON object.
func (r Result) IsStructured() bool {
	return r.Kind == KindStructured && r.Structured != nil
}

// Parse never fails: anything that is not a JSON object comes back as KindRaw.
func Parse(raw string) Result {
	body := stripFence(strings.TrimSpace(raw))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil || fields == nil {
		return Result{Kind: KindRaw, Raw: raw}
	}

	s := &Structured{}
	for key, value := range fields {
		text := fieldText(value)
		switch key {
		case "meaning":
			s.Meaning = text
		case "cause":
			s.Cause = text
		case "fix_code":
			s.FixCode = text
		case "prevention":
			s.Prevention = text
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]string)
			}
			s.Extra[key] = text
		}
	}

	return Result{Kind: KindStructured, Structured: s, Raw: raw}
}

// fieldText returns string values as-is and anything else as compact JSON.
func fieldText(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	if string(value) == "null" {
		return ""
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return string(value)
	}
	return buf.String()
}

// stripFence removes one surrounding Markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	if len(s) < 6 || !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}

	inner := strings.TrimSuffix(s[3:], "```")
	if tag, rest, found := strings.Cut(inner, "\n"); found && !strings.ContainsAny(tag, "{[") {
		inner = rest
	}
	return strings.TrimSpace(inner)
}
