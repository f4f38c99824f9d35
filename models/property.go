package models

import "time"

// RawRecord is a loosely-typed row produced by a source adapter. Keys are
// best-effort among address, city, state, price, beds, baths, lot_sqft, url,
// plus whatever free text the site exposed (snippet, description, ...).
type RawRecord map[string]any

// CanonicalColumns is the column set every tabular output carries, in order,
// even when no source supplied a value for it.
var CanonicalColumns = []string{"address", "city", "state", "price", "beds", "baths", "lot_sqft", "url"}

// DerivedColumns are appended by the classify and enrich stages.
var DerivedColumns = []string{
	"source",
	"has_keywords", "label", "explanation",
	"lat", "lon",
	"buildable_sf", "dev_cost", "resale_value", "profit", "roi_percentage", "roi_score",
	"price_change", "price_change_pct", "days_since_change", "price_history",
}

// Label is the redevelopment likelihood assigned by the classifier.
type Label string

const (
	LabelHigh   Label = "HIGH"
	LabelMedium Label = "MEDIUM"
	LabelLow    Label = "LOW"
)

// ParseLabel normalises s into a Label. ok is false for anything outside
// HIGH/MEDIUM/LOW.
func ParseLabel(s string) (Label, bool) {
	switch Label(s) {
	case LabelHigh, LabelMedium, LabelLow:
		return Label(s), true
	}
	return LabelLow, false
}

// Stage names used in degradations and summaries.
const (
	StageClassify = "classify"
	StageGeocode  = "geocode"
	StageROI      = "roi"
)

// Degradation records that a stage substituted a safe default for a record
// instead of a computed value.
type Degradation struct {
	Stage  string
	Reason string
}

// Property is the canonical, cleaned record that flows from the merger to
// the sinks. Nil pointers are nulls.
type Property struct {
	URL     string
	Address string
	City    string
	State   string
	Price   *float64
	Beds    *float64
	Baths   *float64
	LotSqft *float64
	Source  string

	HasKeywords bool
	Label       Label
	Explanation string

	Lat *float64
	Lon *float64

	BuildableSF   float64
	DevCost       *float64
	ResaleValue   *float64
	Profit        *float64
	ROIPercentage *float64
	ROIScore      *int

	PriceChange     float64
	PriceChangePct  float64
	DaysSinceChange int
	PriceHistory    string

	// Extra holds non-canonical source fields; canonical keys never land here.
	Extra map[string]any

	Degradations []Degradation
}

// Degrade appends a degradation for the given stage.
func (p *Property) Degrade(stage, reason string) {
	p.Degradations = append(p.Degradations, Degradation{Stage: stage, Reason: reason})
}

// Degraded reports whether any stage degraded the record.
func (p *Property) Degraded(stage string) bool {
	for _, d := range p.Degradations {
		if d.Stage == stage {
			return true
		}
	}
	return false
}

// Text returns a named free-text extra field, or "".
func (p *Property) Text(key string) string {
	if p.Extra == nil {
		return ""
	}
	if s, ok := p.Extra[key].(string); ok {
		return s
	}
	return ""
}

// PriceSnapshot is one observed price on one calendar day.
type PriceSnapshot struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PriceHistoryEntry is the durable price state of one listing across runs.
type PriceHistoryEntry struct {
	InitialPrice float64         `json:"initial_price"`
	InitialDate  string          `json:"initial_date"`
	LatestPrice  float64         `json:"latest_price"`
	LatestDate   string          `json:"latest_date"`
	PriceHistory []PriceSnapshot `json:"price_history"`
}

// RunSummary describes one pipeline run; it is the body of the final
// notification.
type RunSummary struct {
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time

	SourceCounts map[string]int
	Merged       int
	DroppedNoURL int
	Processed    int
	Inserted     int

	LabelCounts map[Label]int
	Degraded    map[string]int

	ClassifiedCSV string
	LeadsCSV      string
	LeadsXLSX     string
	MapPath       string
	SheetURL      string

	SinkErrors map[string]string
}

// NewRunSummary returns a summary with its maps initialised.
func NewRunSummary(runID, mode string, started time.Time) *RunSummary {
	return &RunSummary{
		RunID:        runID,
		Mode:         mode,
		StartedAt:    started,
		SourceCounts: make(map[string]int),
		LabelCounts:  make(map[Label]int),
		Degraded:     make(map[string]int),
		SinkErrors:   make(map[string]string),
	}
}
