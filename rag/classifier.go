package rag

import "regexp"

// Classifier decides whether a generated answer admits that the context held
// no usable information.
type Classifier interface {
	NoInformation(answer string) bool
}

// Every pattern ties the negation to missing information or to the context,
// so advice such as "if you can't find your payslip" is not a match.
var defaultNegationPatterns = []string{
	`\b(?:don't|do not|doesn't|does not) have (?:any |enough |sufficient )?(?:relevant |specific )?information\b`,
	`\bno (?:relevant |specific |available )?information (?:is |was )?(?:available|provided|found|given|about|on|regarding)\b`,
	`\b(?:context|documents?|knowledge base) (?:does not|doesn't|do not|don't) (?:contain|include|mention|provide|cover)\b`,
	`\b(?:cannot|can't|can not|unable to|could not|couldn't) (?:find|locate) (?:any )?(?:relevant |specific )?(?:information|details|answer|mention)\b`,
	`\b(?:cannot|can't|can not|unable to|could not|couldn't) (?:find|locate|determine)\b[^.!?\n]*\bin the (?:provided )?(?:context|documents?|knowledge base)\b`,
	`\b(?:cannot|can't|can not|unable to|could not|couldn't) (?:answer|determine) (?:this|that|the|your) question\b`,
	`\bnot (?:mentioned|provided|specified|covered|found|included) in the (?:context|documents?|provided)\b`,
	`\b(?:insufficient|not enough) (?:information|context|details)\b`,
	`\bthere is no mention\b`,
}

// PatternClassifier matches the answer against a fixed list of
// case-insensitive negation patterns.
type PatternClassifier struct {
	patterns []*regexp.Regexp
}

func NewPatternClassifier(patterns ...string) *PatternClassifier {
	if len(patterns) == 0 {
		patterns = defaultNegationPatterns
	}
	c := &PatternClassifier{patterns: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		c.patterns[i] = regexp.MustCompile(`(?i)` + p)
	}
	return c
}

func (c *PatternClassifier) NoInformation(answer string) bool {
	for _, re := range c.patterns {
		if re.MatchString(answer) {
			return true
		}
	}
	return false
}
