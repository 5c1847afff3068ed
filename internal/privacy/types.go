package privacy

import "regexp"

// Rule is a single redaction rule. Rules are applied in slice order, each one
// over the output of the rule before it.
type Rule struct {
	Name            string
	Expr            string
	Replacement     string
	CaseInsensitive bool

	pattern *regexp.Regexp
}

// Pattern returns the compiled expression, honouring CaseInsensitive.
func (r Rule) Pattern() *regexp.Regexp {
	if r.pattern != nil {
		return r.pattern
	}
	return compile(r)
}

// Finding represents a detection result
type Finding struct {
	EntityType string `json:"entityType"`
	Masked     string `json:"masked"`
	Count      int    `json:"count"`
}

// ProcessResult contains the result of processing text through the detector
type ProcessResult struct {
	MaskedText string    `json:"maskedText"`
	Findings   []Finding `json:"findings"`
	Original   string    `json:"-"` // Never serialize original text
}

// Detected reports whether any rule matched.
func (r ProcessResult) Detected() bool {
	return len(r.Findings) > 0
}

func compile(r Rule) *regexp.Regexp {
	expr := r.Expr
	if r.CaseInsensitive {
		expr = "(?i)" + expr
	}
	return regexp.MustCompile(expr)
}
