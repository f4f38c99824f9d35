package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devleads/models"
)

func TestMergeFirstSeenWins(t *testing.T) {
	m := NewMerger(testLogger())
	res := m.Merge([]SourceBatch{
		{Source: "redfin", Records: []models.RawRecord{
			{"url": "https://x/1", "address": "12 Elm St", "price": "$750,000"},
		}},
		{Source: "zillow", Records: []models.RawRecord{
			{"url": "https://x/1", "address": "12 Elm Street", "price": 1.0},
			{"url": "https://x/2", "address": "9 Oak Rd"},
		}},
	})

	require.Len(t, res.Properties, 2)
	first := res.Properties[0]
	assert.Equal(t, "12 Elm St", first.Address)
	assert.Equal(t, "redfin", first.Source)
	require.NotNil(t, first.Price)
	assert.Equal(t, 750000.0, *first.Price)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, "zillow", res.Properties[1].Source)
}

func TestMergeURLIsCaseSensitive(t *testing.T) {
	m := NewMerger(testLogger())
	res := m.Merge([]SourceBatch{{Source: "file", Records: []models.RawRecord{
		{"url": "https://x/A"},
		{"url": "https://x/a"},
	}}})
	assert.Len(t, res.Properties, 2)
}

func TestMergeEmptyInputsYieldCanonicalColumns(t *testing.T) {
	m := NewMerger(testLogger())

	for name, batches := range map[string][]SourceBatch{
		"nil":         nil,
		"empty batch": {{Source: "redfin"}},
		"all empty":   {{Source: "redfin"}, {Source: "zillow", Records: []models.RawRecord{}}},
	} {
		t.Run(name, func(t *testing.T) {
			res := m.Merge(batches)
			assert.Empty(t, res.Properties)
			assert.Equal(t, models.CanonicalColumns, res.Columns())
		})
	}
}

func TestMergeMissingColumnsBecomeNull(t *testing.T) {
	m := NewMerger(testLogger())
	res := m.Merge([]SourceBatch{{Source: "zillow", Records: []models.RawRecord{
		{"url": "https://x/1", "snippet": "  corner   lot  "},
	}}})
	require.Len(t, res.Properties, 1)

	row := res.Properties[0].Row()
	for _, c := range models.CanonicalColumns {
		assert.Contains(t, row, c)
	}
	assert.Nil(t, row["price"])
	assert.Nil(t, row["lot_sqft"])
	assert.Equal(t, "corner lot", res.Properties[0].Text("snippet"))
	assert.Equal(t, models.CanonicalColumns, res.Columns())
}

func TestMergeExtrasStayOutOfColumns(t *testing.T) {
	m := NewMerger(testLogger())
	res := m.Merge([]SourceBatch{{Source: "zillow", Records: []models.RawRecord{
		{"url": "https://x/1", "snippet": "teardown", "zip": "07030"},
		{"url": "https://x/2", "description": "corner lot"},
	}}})
	require.Len(t, res.Properties, 2)

	assert.Equal(t, models.CanonicalColumns, res.Columns())
	assert.Equal(t, "teardown", res.Properties[0].Text("snippet"))
	assert.Equal(t, "07030", res.Properties[0].Text("zip"))
	assert.Equal(t, "corner lot", res.Properties[1].Text("description"))
}

func TestMergeDedupesOnExactURL(t *testing.T) {
	m := NewMerger(testLogger())
	res := m.Merge([]SourceBatch{{Source: "file", Records: []models.RawRecord{
		{"url": "https://x/1"},
		{"url": " https://x/1"},
		{"url": "https://x/1"},
	}}})
	require.Len(t, res.Properties, 2)
	assert.Equal(t, "https://x/1", res.Properties[0].URL)
	assert.Equal(t, " https://x/1", res.Properties[1].URL)
	assert.Equal(t, 1, res.Duplicates)
}

func TestMergeDropsBlankURL(t *testing.T) {
	m := NewMerger(testLogger())
	res := m.Merge([]SourceBatch{{Source: "realtor", Records: []models.RawRecord{
		{"url": "  ", "address": "1 Main St"},
		{"address": "2 Main St"},
		{"url": "https://x/3"},
	}}})
	assert.Len(t, res.Properties, 1)
	assert.Equal(t, 2, res.DroppedNoURL)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  any
		want *float64
	}{
		{"$1,234,000", f64(1234000)},
		{"1,250.50", f64(1250.5)},
		{" 3 ", f64(3)},
		{"USD 99", f64(99)},
		{"€2,000", f64(2000)},
		{"", nil},
		{"N/A", nil},
		{"contact agent", nil},
		{nil, nil},
		{4, f64(4)},
		{2.5, f64(2.5)},
		{true, nil},
	}

	for _, tt := range tests {
		got := parseNumber(tt.raw)
		if tt.want == nil {
			if got != nil {
				t.Errorf("parseNumber(%v) = %v; want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil || *got != *tt.want {
			t.Errorf("parseNumber(%v) = %v; want %.2f", tt.raw, got, *tt.want)
		}
	}
}

func TestNormaliseText(t *testing.T) {
	assert.Equal(t, "12 Elm St", normaliseText("  12\tElm \n St "))
	assert.Equal(t, "", normaliseText("   "))
}

func TestParseNumberRejectsNonFinite(t *testing.T) {
	assert.Nil(t, parseNumber("NaN"))
	assert.Nil(t, parseNumber("Inf"))
	assert.Nil(t, parseNumber("call for price"))
	require.NotNil(t, parseNumber("USD 1,250,000"))
	assert.Equal(t, 1250000.0, *parseNumber("USD 1,250,000"))
}
