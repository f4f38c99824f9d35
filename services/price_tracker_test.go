package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devleads/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestPriceTrackingMonotonicity(t *testing.T) {
	repo := newMemoryHistory()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tracker := NewPriceTracker(repo, c.now, testLogger())
	url := "https://x/1"

	for i := 0; i < 2; i++ {
		p := &models.Property{URL: url, Price: f64(750000)}
		require.NoError(t, tracker.Track([]*models.Property{p}))
		assert.Equal(t, 0.0, p.PriceChange)
		assert.Equal(t, 0.0, p.PriceChangePct)
	}
	require.Len(t, repo.entries[url].PriceHistory, 1)

	c.t = c.t.Add(72 * time.Hour)
	p := &models.Property{URL: url, Price: f64(700000)}
	require.NoError(t, tracker.Track([]*models.Property{p}))

	entry := repo.entries[url]
	require.Len(t, entry.PriceHistory, 2)
	assert.Equal(t, -50000.0, p.PriceChange)
	assert.InDelta(t, -6.6667, p.PriceChangePct, 1e-3)
	assert.Equal(t, 750000.0, entry.InitialPrice)
	assert.Equal(t, "2026-03-01", entry.InitialDate)
	assert.Equal(t, 700000.0, entry.LatestPrice)
	assert.Equal(t, "2026-03-04", entry.LatestDate)
	assert.Equal(t, 0, p.DaysSinceChange)
	assert.JSONEq(t, `[{"date":"2026-03-01","price":750000},{"date":"2026-03-04","price":700000}]`, p.PriceHistory)
	assert.Equal(t, 3, repo.saves)
}

func TestPriceTrackingDaysSinceChange(t *testing.T) {
	repo := newMemoryHistory()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tracker := NewPriceTracker(repo, c.now, testLogger())

	require.NoError(t, tracker.Track([]*models.Property{{URL: "https://x/1", Price: f64(500000)}}))

	c.t = c.t.Add(5 * 24 * time.Hour)
	p := &models.Property{URL: "https://x/1", Price: f64(500000)}
	require.NoError(t, tracker.Track([]*models.Property{p}))
	assert.Equal(t, 5, p.DaysSinceChange)
}

func TestPriceTrackingSkipsUnpriced(t *testing.T) {
	repo := newMemoryHistory()
	tracker := NewPriceTracker(repo, nil, testLogger())

	records := []*models.Property{
		{URL: "https://x/1"},
		{URL: "https://x/2", Price: f64(0)},
		{URL: "", Price: f64(10)},
	}
	require.NoError(t, tracker.Track(records))

	assert.Empty(t, repo.entries)
	for _, p := range records {
		assert.Empty(t, p.PriceHistory)
	}
	assert.Equal(t, 1, repo.saves)
}
