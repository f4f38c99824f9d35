package services

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/utils"
)

const dateLayout = "2006-01-02"

// HistoryRepository is durable per-URL price state.
type HistoryRepository interface {
	Get(url string) (models.PriceHistoryEntry, bool)
	Put(url string, entry models.PriceHistoryEntry)
	Save() error
}

// PriceTracker diffs each record's price against prior runs.
type PriceTracker struct {
	repo   HistoryRepository
	now    func() time.Time
	logger *utils.Logger
}

// NewPriceTracker creates a tracker. now is the clock; nil uses time.Now.
func NewPriceTracker(repo HistoryRepository, now func() time.Time, logger *utils.Logger) *PriceTracker {
	if now == nil {
		now = time.Now
	}
	return &PriceTracker{repo: repo, now: now, logger: logger}
}

// Track updates change fields on every priced record and saves the
// repository once.
func (t *PriceTracker) Track(records []*models.Property) error {
	now := t.now()
	today := now.Format(dateLayout)
	changed, created := 0, 0

	for _, p := range records {
		p.PriceChange, p.PriceChangePct, p.DaysSinceChange = 0, 0, 0
		if p.URL == "" || p.Price == nil || !isFinite(*p.Price) || *p.Price <= 0 {
			continue
		}
		price := *p.Price

		entry, ok := t.repo.Get(p.URL)
		switch {
		case !ok:
			created++
			entry = models.PriceHistoryEntry{
				InitialPrice: price,
				InitialDate:  today,
				LatestPrice:  price,
				LatestDate:   today,
				PriceHistory: []models.PriceSnapshot{{Date: today, Price: price}},
			}
			t.repo.Put(p.URL, entry)
		case entry.LatestPrice != price:
			changed++
			prev := entry.LatestPrice
			if prev > 0 {
				p.PriceChange = price - prev
				p.PriceChangePct = p.PriceChange / prev * 100
			}
			entry.PriceHistory = append(entry.PriceHistory, models.PriceSnapshot{Date: today, Price: price})
			entry.LatestPrice = price
			entry.LatestDate = today
			t.repo.Put(p.URL, entry)
		}

		if latest, err := time.ParseInLocation(dateLayout, entry.LatestDate, now.Location()); err == nil {
			p.DaysSinceChange = int(now.Sub(latest).Hours() / 24)
		}
		history, err := json.Marshal(entry.PriceHistory)
		if err != nil {
			return eris.Wrap(err, "price tracker: encode history")
		}
		p.PriceHistory = string(history)
	}

	if err := t.repo.Save(); err != nil {
		return eris.Wrap(err, "price tracker: save")
	}
	t.logger.Info("[prices] %d new listings, %d price changes", created, changed)
	return nil
}
