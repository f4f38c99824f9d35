// Package scraper holds what the listing-site adapters share: the Source
// contract, detail-URL filters, link extraction and the detail-page fetcher.
package scraper

import (
	"context"

	"devleads/models"
)

// Location is the market an adapter searches.
type Location struct {
	City          string
	State         string
	Neighborhoods []string
}

// Source is one listing site. A source that cannot be reached returns zero
// records and an error; callers treat the error as a warning.
type Source interface {
	Name() string
	Fetch(ctx context.Context, loc Location) ([]models.RawRecord, error)
}

// Renderer returns the DOM of a page after client-side rendering.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// PageFetcher returns the raw HTML of a page.
type PageFetcher interface {
	Get(ctx context.Context, pageURL string) (string, error)
}
