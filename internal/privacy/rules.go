package privacy

// Rule names, in application order.
const (
	RuleAPIKey  = "api_key"
	RuleURL     = "url"
	RuleCompany = "company"
	RuleEmail   = "email"
	RuleDBField = "db_field"
	RuleUserID  = "user_id"
	RulePhone   = "phone"
)

// Order matters: explicit assignments and keys go first so the generic
// numeric patterns at the end never see them. Replacement tokens are
// bracketed upper-case words that no rule matches.
var defaultRules = compileRules([]Rule{
	{
		Name:            RuleAPIKey,
		Expr:            `api[_-]?key["']?\s*[:=]\s*["']?[A-Za-z0-9_\-]{20,}["']?`,
		Replacement:     "[API_KEY]",
		CaseInsensitive: true,
	},
	{
		Name:            RuleURL,
		Expr:            `(?:https?://|www\.)\S+`,
		Replacement:     "[URL]",
		CaseInsensitive: true,
	},
	{
		// Defined by capitalisation, so it must stay case-sensitive.
		Name:        RuleCompany,
		Expr:        `\b[A-Z][a-z]+(?:[A-Z][a-z]+){2,}\b`,
		Replacement: "[COMPANY]",
	},
	{
		Name:            RuleEmail,
		Expr:            `[A-Za-z0-9._%+\-]*@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`,
		Replacement:     "[EMAIL]",
		CaseInsensitive: true,
	},
	{
		Name:        RuleDBField,
		Expr:        `\b[A-Z]{3}\d{4,}\b`,
		Replacement: "[DB_FIELD]",
	},
	{
		Name:            RuleUserID,
		Expr:            `(?:user|customer)[_-]?id\s*[:=]\s*\d+`,
		Replacement:     "[USER_ID]",
		CaseInsensitive: true,
	},
	{
		Name:        RulePhone,
		Expr:        `(?:\(\d{3}\) ?|\b\d{3}[-. ]?)\d{3}[-. ]?\d{4}\b`,
		Replacement: "[PHONE]",
	},
})

// GetDefaultRules returns a copy of the built-in rule set in application order.
func GetDefaultRules() []Rule {
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return rules
}

// Redact applies every default rule in order and returns the masked text.
// Text that matches nothing is returned unchanged.
func Redact(text string) string {
	return Scrub(text, defaultRules).MaskedText
}

// maxScrubPasses bounds the fixpoint loop in Scrub. Every replacement
// removes unmasked characters, so real input settles within a few passes.
const maxScrubPasses = 8

// Scrub applies rules in order over the progressively masked text and
// reports how many matches each rule replaced. A replacement can expose a
// new match for an earlier rule (digits glued to a name, say), so the rule
// set is re-run until the text stops changing.
func Scrub(text string, rules []Rule) ProcessResult {
	masked := text
	findings := make([]Finding, 0)
	index := make(map[string]int)

	for pass := 0; pass < maxScrubPasses; pass++ {
		before := masked
		for _, rule := range rules {
			pattern := rule.Pattern()
			matches := pattern.FindAllStringIndex(masked, -1)
			if len(matches) == 0 {
				continue
			}

			if i, ok := index[rule.Name]; ok {
				findings[i].Count += len(matches)
			} else {
				index[rule.Name] = len(findings)
				findings = append(findings, Finding{
					EntityType: rule.Name,
					Masked:     rule.Replacement,
					Count:      len(matches),
				})
			}
			masked = pattern.ReplaceAllLiteralString(masked, rule.Replacement)
		}
		if masked == before {
			break
		}
	}

	return ProcessResult{
		MaskedText: masked,
		Findings:   findings,
		Original:   text,
	}
}

func compileRules(rules []Rule) []Rule {
	for i := range rules {
		rules[i].pattern = compile(rules[i])
	}
	return rules
}
