package services

import (
	"context"
	"fmt"
	"strings"

	"devleads/models"
	"devleads/utils"
)

// Verdict is an oracle's answer for one listing.
type Verdict struct {
	Label  models.Label
	Reason string
}

// Oracle labels free text for redevelopment potential.
type Oracle interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

const (
	explanationNoCredential = "No ANTHROPIC_API_KEY configured; keyword-only fallback."
	explanationPriceUpdate  = "Price update run; keyword-only classification."
)

// Classifier assigns a label and explanation to every record. A nil oracle
// means keyword-only classification.
type Classifier struct {
	detector *KeywordDetector
	oracle   Oracle
	logger   *utils.Logger
}

// NewClassifier wires a detector and an optional oracle.
func NewClassifier(detector *KeywordDetector, oracle Oracle, logger *utils.Logger) *Classifier {
	return &Classifier{detector: detector, oracle: oracle, logger: logger}
}

// Classify labels records in place. With keywordOnly set the oracle is never
// consulted.
func (c *Classifier) Classify(ctx context.Context, records []*models.Property, keywordOnly bool) {
	useOracle := c.oracle != nil && !keywordOnly
	oracleCalls, failures := 0, 0

	for _, p := range records {
		text := CompositeText(p)
		hits := c.detector.Match(text)
		p.HasKeywords = len(hits) > 0

		if !useOracle {
			p.Label = models.LabelLow
			if p.HasKeywords {
				p.Label = models.LabelHigh
			}
			p.Explanation = explanationNoCredential
			if keywordOnly {
				p.Explanation = explanationPriceUpdate
			}
			continue
		}

		oracleCalls++
		v, err := c.oracle.Classify(ctx, text)
		if err != nil {
			failures++
			p.Label = models.LabelLow
			p.Explanation = fmt.Sprintf("LLM error: %v", err)
			p.Degrade(models.StageClassify, err.Error())
			c.logger.Warn("[classifier] %s: %v", p.URL, err)
			continue
		}
		label, ok := models.ParseLabel(strings.ToUpper(strings.TrimSpace(string(v.Label))))
		if !ok {
			failures++
			reason := fmt.Sprintf("invalid label %q", v.Label)
			p.Label = models.LabelLow
			p.Explanation = "LLM error: " + reason
			p.Degrade(models.StageClassify, reason)
			c.logger.Warn("[classifier] %s: %s", p.URL, reason)
			continue
		}
		p.Label = label
		p.Explanation = v.Reason
	}

	c.logger.Info("[classifier] Labelled %d records (oracle calls %d, failures %d)",
		len(records), oracleCalls, failures)
}

// CompositeText is the text a record is judged on: the listing snippet or
// description when the source supplied one, else its address line.
func CompositeText(p *models.Property) string {
	if s := p.Text("snippet"); s != "" {
		return s
	}
	if s := p.Text("description"); s != "" {
		return s
	}
	return strings.TrimSpace(strings.Join([]string{p.Address, p.City, p.State}, " "))
}
