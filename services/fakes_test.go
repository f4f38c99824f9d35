package services

import (
	"context"
	"errors"
	"time"

	"devleads/models"
	"devleads/utils"
)

func testLogger() *utils.Logger { return utils.NopLogger() }

func f64(v float64) *float64 { return &v }

type fakeOracle struct {
	calls   int
	verdict Verdict
	err     error
}

func (o *fakeOracle) Classify(_ context.Context, _ string) (Verdict, error) {
	o.calls++
	return o.verdict, o.err
}

type geocodeCall struct {
	query   string
	timeout time.Duration
}

// fakeGeocoder answers from a table keyed by query. Queries listed in fail
// return a transport error.
type fakeGeocoder struct {
	hits  map[string][2]float64
	fail  map[string]bool
	calls []geocodeCall
}

func (g *fakeGeocoder) Geocode(_ context.Context, query string, timeout time.Duration) (float64, float64, bool, error) {
	g.calls = append(g.calls, geocodeCall{query, timeout})
	if g.fail[query] {
		return 0, 0, false, errors.New("connection reset")
	}
	if ll, ok := g.hits[query]; ok {
		return ll[0], ll[1], true, nil
	}
	return 0, 0, false, nil
}

type memoryHistory struct {
	entries map[string]models.PriceHistoryEntry
	saves   int
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: make(map[string]models.PriceHistoryEntry)}
}

func (m *memoryHistory) Get(url string) (models.PriceHistoryEntry, bool) {
	e, ok := m.entries[url]
	return e, ok
}

func (m *memoryHistory) Put(url string, e models.PriceHistoryEntry) { m.entries[url] = e }

func (m *memoryHistory) Save() error {
	m.saves++
	return nil
}
