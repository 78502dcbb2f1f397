package intent

import (
	"regexp"
	"strings"

	"finqa/internal/domain"
)

// Classifier tags a question with its intent and splits conjoined asks into
// independently retrievable sub-questions. Classification is a pure function
// over the input text and never fails; unmatched input degrades to "query".
type Classifier struct {
	tokenPattern *regexp.Regexp
	connectors   []string
	reasoning    []string
	summary      []string
	financial    []string
	application  []string
	constraints  []constraintPattern
}

type constraintPattern struct {
	kind    string
	pattern *regexp.Regexp
}

// NewClassifier creates a rule-based intent classifier.
func NewClassifier() *Classifier {
	return &Classifier{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		// Ordered most specific first; the first connector that yields two
		// valid parts wins.
		connectors: []string{"; ", " as well as ", ", and ", " and ", " also ", " plus "},
		reasoning: []string{
			"whether", "eligible", "eligibility", "qualify", "qualifies", "qualified",
			"comply", "compliance", "compliant", "conform", "satisfy", "satisfies", "satisfied",
			"requirement", "requirements", "condition", "conditions", "qualification", "qualifications",
			"assess", "evaluate", "calculate", "judge", "analyze",
			"can i", "could i", "am i", "is it possible", "do i meet", "does it meet",
		},
		summary: []string{
			"summarize", "summarise", "summary", "recap", "outline", "overview",
			"sum up", "list the", "list all", "what are the main", "main functions",
			"introduce", "briefly describe",
		},
		financial: []string{
			"loan", "loans", "mortgage", "credit", "interest", "lpr", "apr",
			"deposit", "deposits", "insurance", "fund", "funds", "stock", "stocks",
			"bond", "bonds", "securities", "account", "accounts", "transfer",
			"repayment", "installment", "overdraft", "dividend", "savings",
			"bank", "banking", "payment", "payments", "card",
			"interest rate", "wealth management", "mobile banking", "online banking",
			"exchange rate",
		},
		application: []string{"apply", "applying", "application", "borrow", "borrowing"},
		constraints: []constraintPattern{
			{"amount", regexp.MustCompile(`(?i)\$\s?\d[\d,]*(?:\.\d+)?|\d[\d,]*(?:\.\d+)?\s*(?:dollars?|usd|yuan|rmb|cny|euros?|eur)\b`)},
			{"percentage", regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:%|percent\b)`)},
			{"age", regexp.MustCompile(`(?i)\d{1,3}\s*years?\s*old\b|\baged?\s+\d{1,3}\b`)},
			{"term", regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:years?|months?|weeks?|days?)\b`)},
		},
	}
}

// Classify analyzes a question and returns its intent tag, facet flags,
// sub-questions and extracted numeric constraints.
func (c *Classifier) Classify(question string) domain.Intent {
	lower := lowerASCII(question)
	tokens := c.tokenSet(lower)

	out := domain.Intent{
		Kind:         domain.IntentQuery,
		SubQuestions: []string{question},
	}

	// Conjoined asks become separate sub-questions.
	if parts := c.split(question, lower); len(parts) >= 2 {
		out.IsMultiIntent = true
		out.SubQuestions = parts
	}

	out.IsReasoning = c.matchAny(lower, tokens, c.reasoning)
	out.IsSummary = c.matchAny(lower, tokens, c.summary)
	out.IsFinancial = c.matchAny(lower, tokens, c.financial)
	out.Constraints = c.extractConstraints(question)

	// A concrete amount next to application wording is a qualification check
	// even without an explicit compliance keyword.
	if !out.IsReasoning && hasKind(out.Constraints, "amount") && c.matchAny(lower, tokens, c.application) {
		out.IsReasoning = true
	}

	switch {
	case out.IsMultiIntent:
		out.Kind = domain.IntentMultiIntent
	case out.IsReasoning:
		out.Kind = domain.IntentReasoning
	case out.IsSummary:
		out.Kind = domain.IntentSummary
	case out.IsFinancial:
		out.Kind = domain.IntentFinancial
	}
	return out
}

// split cuts the question at the first connector producing at least two parts
// of two or more tokens each. It returns nil when no connector qualifies.
func (c *Classifier) split(question, lower string) []string {
	for _, conn := range c.connectors {
		if !strings.Contains(lower, conn) {
			continue
		}
		var parts []string
		for _, raw := range cutOnConnector(question, lower, conn) {
			part := strings.Trim(raw, " \t,;.!?")
			if len(c.tokenPattern.FindAllString(lowerASCII(part), -1)) < 2 {
				continue
			}
			if !strings.HasSuffix(part, "?") {
				part += "?"
			}
			parts = append(parts, part)
		}
		if len(parts) >= 2 {
			return parts
		}
	}
	return nil
}

func (c *Classifier) extractConstraints(question string) []domain.Constraint {
	var out []domain.Constraint
	rest := question
	for _, cp := range c.constraints {
		locs := cp.pattern.FindAllStringIndex(rest, -1)
		for _, loc := range locs {
			out = append(out, domain.Constraint{
				Kind:  cp.kind,
				Value: strings.TrimSpace(rest[loc[0]:loc[1]]),
			})
		}
		// Age spans would otherwise re-match as durations.
		if cp.kind == "age" && len(locs) > 0 {
			rest = maskSpans(rest, locs)
		}
	}
	return out
}

// matchAny reports whether any term occurs in the question. Multi-word terms
// match as substrings, single words as whole tokens.
func (c *Classifier) matchAny(lower string, tokens map[string]struct{}, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(term, " ") {
			if strings.Contains(lower, term) {
				return true
			}
		} else if _, ok := tokens[term]; ok {
			return true
		}
	}
	return false
}

func (c *Classifier) tokenSet(lower string) map[string]struct{} {
	toks := c.tokenPattern.FindAllString(lower, -1)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

func hasKind(constraints []domain.Constraint, kind string) bool {
	for _, c := range constraints {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// cutOnConnector slices the original question at every occurrence of the
// connector found in its lowered form. lowerASCII preserves byte offsets, so
// indices computed on lower stay valid in question.
func cutOnConnector(question, lower, connector string) []string {
	var parts []string
	prev := 0
	for {
		i := strings.Index(lower[prev:], connector)
		if i < 0 {
			break
		}
		cut := prev + i
		parts = append(parts, question[prev:cut])
		prev = cut + len(connector)
	}
	return append(parts, question[prev:])
}

// lowerASCII lowercases A-Z only, keeping byte length identical to the input.
func lowerASCII(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + ('a' - 'A')
		}
	}
	return string(b)
}

func maskSpans(s string, spans [][]int) string {
	b := []byte(s)
	for _, span := range spans {
		for i := span[0]; i < span[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}
