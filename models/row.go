package models

import (
	"sort"
	"strconv"
	"strings"
)

// Columns returns the ordered column set for a batch of records: canonical
// columns first, then derived columns, then every extra key seen, sorted.
func Columns(records []*Property) []string {
	cols := make([]string, 0, len(CanonicalColumns)+len(DerivedColumns))
	cols = append(cols, CanonicalColumns...)
	cols = append(cols, DerivedColumns...)

	known := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		known[c] = struct{}{}
	}

	var extras []string
	for _, r := range records {
		for k := range r.Extra {
			if _, ok := known[k]; ok {
				continue
			}
			known[k] = struct{}{}
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(cols, extras...)
}

// Row flattens p into a column → value map. Nulls are nil; numbers are
// float64 or int; booleans stay bool so sinks can pick a storage type.
func (p *Property) Row() map[string]any {
	row := map[string]any{
		"address":           nullString(p.Address),
		"city":              nullString(p.City),
		"state":             nullString(p.State),
		"price":             deref(p.Price),
		"beds":              deref(p.Beds),
		"baths":             deref(p.Baths),
		"lot_sqft":          deref(p.LotSqft),
		"url":               p.URL,
		"source":            nullString(p.Source),
		"has_keywords":      p.HasKeywords,
		"label":             nullString(string(p.Label)),
		"explanation":       p.Explanation,
		"lat":               deref(p.Lat),
		"lon":               deref(p.Lon),
		"buildable_sf":      p.BuildableSF,
		"dev_cost":          deref(p.DevCost),
		"resale_value":      deref(p.ResaleValue),
		"profit":            deref(p.Profit),
		"roi_percentage":    deref(p.ROIPercentage),
		"roi_score":         nil,
		"price_change":      p.PriceChange,
		"price_change_pct":  p.PriceChangePct,
		"days_since_change": p.DaysSinceChange,
		"price_history":     nullString(p.PriceHistory),
	}
	if p.ROIScore != nil {
		row["roi_score"] = *p.ROIScore
	}
	for k, v := range p.Extra {
		if _, taken := row[k]; !taken {
			row[k] = v
		}
	}
	return row
}

// PropertyFromStrings rebuilds a record from a string-oriented table row, such
// as one read back from the spreadsheet. Unparseable numbers become nil.
func PropertyFromStrings(row map[string]string) *Property {
	p := &Property{
		URL:          row["url"],
		Address:      row["address"],
		City:         row["city"],
		State:        row["state"],
		Source:       row["source"],
		Explanation:  row["explanation"],
		Price:        parseFloat(row["price"]),
		Beds:         parseFloat(row["beds"]),
		Baths:        parseFloat(row["baths"]),
		LotSqft:      parseFloat(row["lot_sqft"]),
		Lat:          parseFloat(row["lat"]),
		Lon:          parseFloat(row["lon"]),
		PriceHistory: row["price_history"],
	}
	if l, ok := ParseLabel(strings.ToUpper(row["label"])); ok {
		p.Label = l
	}
	p.HasKeywords = row["has_keywords"] == "true" || row["has_keywords"] == "TRUE"
	if v := parseFloat(row["roi_score"]); v != nil {
		score := int(*v)
		p.ROIScore = &score
	}
	p.ROIPercentage = parseFloat(row["roi_percentage"])
	if v := parseFloat(row["buildable_sf"]); v != nil {
		p.BuildableSF = *v
	}
	return p
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
