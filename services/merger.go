package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"devleads/models"
	"devleads/utils"
)

// numberStrip removes currency symbols, thousands separators and whitespace
// before a numeric parse.
var numberStrip = regexp.MustCompile(`[\s,$€£]|USD`)

// SourceBatch is the output of one source adapter.
type SourceBatch struct {
	Source  string
	Records []models.RawRecord
}

// MergeResult is the merged record set plus bookkeeping for the summary.
type MergeResult struct {
	Properties   []*models.Property
	Duplicates   int
	DroppedNoURL int
}

// Merger concatenates adapter outputs into one deduplicated, normalised set.
type Merger struct {
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge concatenates batches in order and dedupes on exact url, keeping the
// first-seen record. Empty batches are ignored.
func (m *Merger) Merge(batches []SourceBatch) MergeResult {
	var res MergeResult
	seen := utils.NewURLSet()
	total := 0

	for _, b := range batches {
		for _, raw := range b.Records {
			total++
			url := stringValue(raw["url"])
			if strings.TrimSpace(url) == "" {
				res.DroppedNoURL++
				m.logger.Warn("[merger] Dropping %s record with empty URL: %s", b.Source, stringValue(raw["address"]))
				continue
			}
			if !seen.Add(url) {
				res.Duplicates++
				m.logger.Debug("[merger] Duplicate URL skipped: %s", url)
				continue
			}
			res.Properties = append(res.Properties, normalise(b.Source, url, raw))
		}
	}

	m.logger.Info("[merger] Merged %d → %d records (duplicates %d, no url %d)",
		total, len(res.Properties), res.Duplicates, res.DroppedNoURL)
	return res
}

func normalise(source, url string, raw models.RawRecord) *models.Property {
	p := &models.Property{
		URL:     url,
		Address: normaliseText(stringValue(raw["address"])),
		City:    normaliseText(stringValue(raw["city"])),
		State:   normaliseText(stringValue(raw["state"])),
		Price:   parseNumber(raw["price"]),
		Beds:    parseNumber(raw["beds"]),
		Baths:   parseNumber(raw["baths"]),
		LotSqft: parseNumber(raw["lot_sqft"]),
		Source:  source,
	}
	if s := stringValue(raw["source"]); s != "" {
		p.Source = s
	}

	canonical := make(map[string]struct{}, len(models.CanonicalColumns)+1)
	for _, c := range models.CanonicalColumns {
		canonical[c] = struct{}{}
	}
	canonical["source"] = struct{}{}

	for k, v := range raw {
		if _, ok := canonical[k]; ok || v == nil {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		if s, ok := v.(string); ok {
			v = normaliseText(s)
		}
		p.Extra[k] = v
	}
	return p
}

// parseNumber coerces an adapter value to a number. Strings have currency
// symbols and thousands separators stripped. Anything unparseable is nil.
func parseNumber(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		cleaned := numberStrip.ReplaceAllString(t, "")
		if cleaned == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if !isFinite(f) {
		return nil
	}
	return &f
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// Columns is the merged table's column set. It is always exactly the
// canonical set; extra adapter keys travel in Property.Extra.
func (r MergeResult) Columns() []string {
	return append([]string(nil), models.CanonicalColumns...)
}
