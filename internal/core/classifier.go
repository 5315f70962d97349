package core

import (
	"strings"

	"discharge-assistant/pkg"
)

// DefaultNameTriggers are the tokens that mark a short turn as a name.
var DefaultNameTriggers = []string{"john", "doe", "smith", "name"}

// Classifier decides how a turn is routed.
type Classifier interface {
	Classify(text string) pkg.RoutingDecision
}

// KeywordClassifier routes a turn to NameLookup when it is at most MaxWords
// words long and contains one of Triggers anywhere, ignoring case.  Names
// outside the trigger set are routed as clinical questions.
type KeywordClassifier struct {
	Triggers []string
	MaxWords int
}

// NewKeywordClassifier lowercases the triggers once.  Empty triggers fall
// back to DefaultNameTriggers and a non-positive maxWords to 3.
func NewKeywordClassifier(triggers []string, maxWords int) *KeywordClassifier {
	if len(triggers) == 0 {
		triggers = DefaultNameTriggers
	}
	if maxWords <= 0 {
		maxWords = 3
	}
	lowered := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &KeywordClassifier{Triggers: lowered, MaxWords: maxWords}
}

// Classify never fails.
func (c *KeywordClassifier) Classify(text string) pkg.RoutingDecision {
	if len(strings.Fields(text)) > c.MaxWords {
		return pkg.ClinicalQuery
	}
	lower := strings.ToLower(text)
	for _, t := range c.Triggers {
		if t != "" && strings.Contains(lower, t) {
			return pkg.NameLookup
		}
	}
	return pkg.ClinicalQuery
}
