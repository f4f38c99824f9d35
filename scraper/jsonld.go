package scraper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JSONLD decodes every application/ld+json block in the document. Blocks
// that fail to decode are skipped.
func JSONLD(doc *goquery.Document) []any {
	var out []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err == nil {
			out = append(out, v)
		}
	})
	return out
}

// FindKey walks v depth-first and returns the first value stored under key.
func FindKey(v any, key string) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		if val, ok := t[key]; ok {
			return val, true
		}
		for _, child := range t {
			if val, ok := FindKey(child, key); ok {
				return val, true
			}
		}
	case []any:
		for _, child := range t {
			if val, ok := FindKey(child, key); ok {
				return val, true
			}
		}
	}
	return nil, false
}

// FindString is FindKey for scalar values, rendered as a string.
func FindString(values []any, key string) string {
	for _, v := range values {
		val, ok := FindKey(v, key)
		if !ok {
			continue
		}
		switch t := val.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case map[string]any:
			// schema.org QuantitativeValue
			if inner, ok := t["value"]; ok {
				return fmt.Sprint(inner)
			}
		}
	}
	return ""
}
