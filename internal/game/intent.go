package game

import (
	"strconv"
	"strings"

	"quizparty/internal/model"
)

// IntentParser maps free-form answer text (typed or transcribed speech) to
// a choice label. Implementations are swappable without touching turn or
// phase logic.
type IntentParser interface {
	Parse(text string, choices []model.Choice) (label string, ok bool)
}

// choiceMatcher is the default parser. It accepts the choice label itself,
// the full choice text, or a 1-based ordinal.
type choiceMatcher struct{}

// NewChoiceMatcher returns the default IntentParser.
func NewChoiceMatcher() IntentParser {
	return choiceMatcher{}
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4,
	"fifth": 5, "sixth": 6, "seventh": 7, "eighth": 8,
}

func (choiceMatcher) Parse(text string, choices []model.Choice) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", false
	}

	for _, c := range choices {
		if s == strings.ToLower(c.Label) {
			return c.Label, true
		}
	}
	for _, c := range choices {
		if s == strings.ToLower(strings.TrimSpace(c.Text)) {
			return c.Label, true
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		if v, ok := ordinals[s]; ok {
			n = v
		} else {
			return "", false
		}
	}
	if n >= 1 && n <= len(choices) {
		return choices[n-1].Label, true
	}
	return "", false
}
