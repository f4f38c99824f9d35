// Package redfin scrapes Redfin search results and listing pages.
package redfin

import (
	"context"
	"regexp"
	"strings"

	"devleads/models"
	"devleads/scraper"
	"devleads/utils"
)

const base = "https://www.redfin.com"

var selectors = []string{
	`a[data-rf-test-id="basic-card-click"]`,
	`a[href*="/home/"]`,
}

var (
	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"streetLine"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"streetAddress"\s*:\s*"([^"]+)"`),
	}
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"price"\s*:\s*"?\$?([\d,]+)"?`),
		regexp.MustCompile(`"listingPrice"\s*:\s*"?\$?([\d,]+)"?`),
		regexp.MustCompile(`data-rf-test-id="abp-price"[^>]*>\s*(?:<[^>]+>\s*)*\$([\d,]+)`),
	}
	bedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"beds"\s*:\s*"?(\d+(?:\.\d+)?)"?`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:Beds?|bd)\b`),
	}
	bathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"baths"\s*:\s*"?(\d+(?:\.\d+)?)"?`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:Baths?|ba)\b`),
	}
	lotPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"lotSize"\s*:\s*"?([\d,]+)"?`),
		regexp.MustCompile(`"lotSqFt"\s*:\s*"?([\d,]+)"?`),
		regexp.MustCompile(`(?i)Lot Size\s*:?\s*(?:<[^>]+>\s*)*([\d,]+)\s*(?:sq\.?\s*ft|square feet)`),
	}
)

// Source is the Redfin adapter.
type Source struct {
	searchURL   string
	maxListings int
	renderer    scraper.Renderer
	fetcher     scraper.PageFetcher
	logger      *utils.Logger
}

// New returns a Redfin source that renders searchURL and fetches at most
// maxListings detail pages.
func New(searchURL string, maxListings int, r scraper.Renderer, f scraper.PageFetcher, logger *utils.Logger) *Source {
	return &Source{searchURL: searchURL, maxListings: maxListings, renderer: r, fetcher: f, logger: logger}
}

func (s *Source) Name() string { return "redfin" }

// Fetch implements scraper.Source.
func (s *Source) Fetch(ctx context.Context, loc scraper.Location) ([]models.RawRecord, error) {
	filter, err := scraper.NewURLFilter("redfin", loc)
	if err != nil {
		return nil, err
	}
	crawl := &scraper.Crawl{
		Site:        s.Name(),
		Base:        base,
		SearchPages: []string{s.searchURL},
		Selectors:   selectors,
		MaxListings: s.maxListings,
		Filter:      filter,
		Renderer:    s.renderer,
		Fetcher:     s.fetcher,
		Parse:       ParseDetail,
		Logger:      s.logger,
	}
	return crawl.Run(ctx, loc)
}

// ParseDetail extracts the listing fields from a Redfin home page. JSON-LD
// is preferred, then the embedded page state, then visible text.
func ParseDetail(html string) models.RawRecord {
	doc := scraper.Document(html)
	ld := scraper.JSONLD(doc)
	rec := models.RawRecord{}

	address := scraper.FindString(ld, "streetAddress")
	if address == "" {
		address = scraper.MatchFirst(html, addressPatterns)
	}
	if address == "" {
		address = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if address == "" {
		title := doc.Find("title").First().Text()
		address = strings.TrimSpace(strings.Split(title, "|")[0])
	}
	if address != "" {
		address, _, _ = strings.Cut(address, ",")
	}
	scraper.Set(rec, "address", strings.TrimSpace(address))
	scraper.Set(rec, "city", scraper.FindString(ld, "addressLocality"))
	scraper.Set(rec, "state", scraper.FindString(ld, "addressRegion"))

	price := scraper.FindString(ld, "price")
	if price == "" {
		price = scraper.MatchFirst(html, pricePatterns)
	}
	scraper.Set(rec, "price", price)

	beds := scraper.FindString(ld, "numberOfBedrooms")
	if beds == "" {
		beds = scraper.MatchFirst(html, bedPatterns)
	}
	scraper.Set(rec, "beds", beds)

	baths := scraper.FindString(ld, "numberOfBathroomsTotal")
	if baths == "" {
		baths = scraper.MatchFirst(html, bathPatterns)
	}
	scraper.Set(rec, "baths", baths)

	scraper.Set(rec, "lot_sqft", scraper.MatchFirst(html, lotPatterns))
	scraper.Set(rec, "description", scraper.Description(doc))
	return rec
}
