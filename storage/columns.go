package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"devleads/models"
)

// Generic column types. Each SQL dialect maps them to its own names.
const (
	typeInteger = "INTEGER"
	typeReal    = "REAL"
	typeText    = "TEXT"
)

// ExpectedColumns is the column set migrate-db guarantees.
var ExpectedColumns = map[string]string{
	"address":           typeText,
	"city":              typeText,
	"state":             typeText,
	"price":             typeReal,
	"beds":              typeReal,
	"baths":             typeReal,
	"lot_sqft":          typeReal,
	"url":               typeText,
	"source":            typeText,
	"has_keywords":      typeInteger,
	"label":             typeText,
	"explanation":       typeText,
	"lat":               typeReal,
	"lon":               typeReal,
	"buildable_sf":      typeReal,
	"dev_cost":          typeReal,
	"resale_value":      typeReal,
	"profit":            typeReal,
	"roi_percentage":    typeReal,
	"roi_score":         typeInteger,
	"price_change":      typeReal,
	"price_change_pct":  typeReal,
	"days_since_change": typeInteger,
	"price_history":     typeText,
}

// batch is a flattened, URL-deduplicated set of rows ready for a sink.
type batch struct {
	cols  []string
	rows  []map[string]any
	types map[string]string
}

// newBatch flattens records. Duplicate URLs within the batch keep the first
// row. With foldCase, columns equal under case folding collapse onto the
// first one seen and its nulls are filled from the others.
func newBatch(records []*models.Property, foldCase bool) batch {
	seen := make(map[string]struct{}, len(records))
	kept := make([]*models.Property, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		kept = append(kept, r)
	}

	b := batch{types: make(map[string]string)}
	folded := make(map[string]string)
	aliases := make(map[string]string)
	for _, c := range models.Columns(kept) {
		// id is the table's own key
		if c == "id" || (foldCase && strings.EqualFold(c, "id")) {
			continue
		}
		if foldCase {
			key := strings.ToLower(c)
			if first, ok := folded[key]; ok {
				aliases[c] = first
				continue
			}
			folded[key] = c
		}
		b.cols = append(b.cols, c)
	}
	for _, r := range kept {
		row := r.Row()
		for alias, col := range aliases {
			if row[col] == nil {
				row[col] = row[alias]
			}
			delete(row, alias)
		}
		b.rows = append(b.rows, row)
	}
	for _, c := range b.cols {
		b.types[c] = inferType(c, b.rows)
	}
	return b
}

// inferType picks the storage type from the first non-null value, falling
// back to the expected type for the column.
func inferType(col string, rows []map[string]any) string {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case bool, int, int32, int64:
			return typeInteger
		case float32, float64:
			return typeReal
		default:
			return typeText
		}
	}
	if t, ok := ExpectedColumns[col]; ok {
		return t
	}
	return typeText
}

// sqlValue converts a row value to a driver argument. NaN, ±Inf and nil
// become NULL; booleans 0/1; nested values JSON text.
func sqlValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return sqlValue(float64(t))
	case int:
		return int64(t)
	case int64, string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// cellString renders a row value for text sinks. Nulls and non-finite
// numbers are empty.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
