package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"devleads/models"
	"devleads/utils"
)

func sampleRecords() []*models.Property {
	score := 12
	return []*models.Property{
		{URL: "https://x/1", Address: "12 Elm St", City: "Newton", State: "MA", Price: f64(750000),
			Lat: f64(42.33), Lon: f64(-71.2), Label: models.LabelHigh, ROIScore: &score,
			Extra: map[string]any{"snippet": "tear down"}},
		{URL: "https://x/2", Address: "9 Oak Rd"},
	}
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "leads.csv")
	require.NoError(t, WriteCSVFile(path, sampleRecords()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, models.CanonicalColumns, header[:len(models.CanonicalColumns)])
	assert.Equal(t, "snippet", header[len(header)-1])

	idx := make(map[string]int)
	for i, h := range header {
		idx[h] = i
	}
	assert.Equal(t, "750000", rows[1][idx["price"]])
	assert.Equal(t, "12", rows[1][idx["roi_score"]])
	assert.Equal(t, "", rows[2][idx["price"]])
	assert.Equal(t, "false", rows[2][idx["has_keywords"]])
}

func TestWriteCSVFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteCSVFile(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(models.CanonicalColumns, ",")))
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "price_history.json")
	log := utils.NopLogger()

	s, err := OpenHistoryStore(path, log)
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	entry := models.PriceHistoryEntry{
		InitialPrice: 1, InitialDate: "2026-03-01", LatestPrice: 2, LatestDate: "2026-03-02",
		PriceHistory: []models.PriceSnapshot{{Date: "2026-03-01", Price: 1}, {Date: "2026-03-02", Price: 2}},
	}
	s.Put("https://x/1", entry)
	require.NoError(t, s.Save())

	reopened, err := OpenHistoryStore(path, log)
	require.NoError(t, err)
	got, ok := reopened.Get("https://x/1")
	require.True(t, ok)
	assert.Equal(t, entry, got)

	var raw map[string]map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw["https://x/1"], "initial_price")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".price_history-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestHistoryStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := OpenHistoryStore(path, utils.NopLogger())
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRecords()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[xlsxSheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "address", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "12 Elm St", sheet.Rows[1].Cells[0].String())
}

func TestWriteMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps", "latest_map.html")
	n, err := WriteMap(path, "Newton, MA leads", 42.337, -71.209, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "leaflet")
	assert.Contains(t, html, `"FeatureCollection"`)
	assert.Contains(t, html, "12 Elm St")
	assert.NotContains(t, html, "9 Oak Rd")
}

func TestLeadFeatures(t *testing.T) {
	fc := LeadFeatures(sampleRecords())
	require.Len(t, fc.Features, 1)
	coords := fc.Features[0].Geometry.FlatCoords()
	assert.Equal(t, []float64{-71.2, 42.33}, coords)
	assert.Equal(t, "HIGH", fc.Features[0].Properties["label"])
}

func TestTruncateCell(t *testing.T) {
	long := strings.Repeat("a", maxCellLength+10)
	assert.Len(t, truncateCell(long), maxCellLength)

	multi := strings.Repeat("a", maxCellLength-1) + "é"
	got := truncateCell(multi)
	assert.Len(t, got, maxCellLength-1)
	assert.Equal(t, "short", truncateCell("short"))
}
