package services

import (
	"strings"

	"golang.org/x/text/cases"
)

// KeywordDetector does case-folded substring matching against a fixed phrase
// list. It makes no network calls.
type KeywordDetector struct {
	phrases []string
	folded  []string
}

// NewKeywordDetector folds every phrase once up front. Blank phrases are
// ignored.
func NewKeywordDetector(phrases []string) *KeywordDetector {
	fold := cases.Fold()
	d := &KeywordDetector{}
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d.phrases = append(d.phrases, p)
		d.folded = append(d.folded, fold.String(p))
	}
	return d
}

// Match returns the configured phrases found in text, in list order.
func (d *KeywordDetector) Match(text string) []string {
	if text == "" {
		return nil
	}
	haystack := cases.Fold().String(text)
	var hits []string
	for i, f := range d.folded {
		if strings.Contains(haystack, f) {
			hits = append(hits, d.phrases[i])
		}
	}
	return hits
}
