// Package realtor scrapes realtor.com city pages and listing pages.
package realtor

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"devleads/models"
	"devleads/scraper"
	"devleads/utils"
)

const base = "https://www.realtor.com"

var selectors = []string{
	`a[data-testid="property-anchor"]`,
	`a[href*="/realestateandhomes-detail/"]`,
}

var (
	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"street"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"addressLine"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"line"\s*:\s*"([^"]+)"`),
	}
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"list_price"\s*:\s*([\d.]+)`),
		regexp.MustCompile(`"price_raw"\s*:\s*"?([\d.,]+)"?`),
		regexp.MustCompile(`"price"\s*:\s*"?\$?([\d,]+)"?`),
	}
	bedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"beds"\s*:\s*(\d+)`),
		regexp.MustCompile(`data-testid="property-meta-beds"[^>]*>\s*(?:<[^>]+>\s*)*(\d+)`),
	}
	bathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"baths"\s*:\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`data-testid="property-meta-baths"[^>]*>\s*(?:<[^>]+>\s*)*(\d+(?:\.\d+)?)`),
	}
	lotPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"lot_sqft"\s*:\s*(\d+)`),
		regexp.MustCompile(`"lot_size"\s*:\s*\{[^}]*"size"\s*:\s*(\d+)`),
		regexp.MustCompile(`(?i)([\d,]+)\s*(?:sqft|sq\.?\s*ft)\s*lot`),
	}
)

// Source is the realtor.com adapter.
type Source struct {
	cityURL     string
	maxListings int
	renderer    scraper.Renderer
	fetcher     scraper.PageFetcher
	logger      *utils.Logger
}

func New(cityURL string, maxListings int, r scraper.Renderer, f scraper.PageFetcher, logger *utils.Logger) *Source {
	return &Source{cityURL: cityURL, maxListings: maxListings, renderer: r, fetcher: f, logger: logger}
}

func (s *Source) Name() string { return "realtor" }

// Fetch walks the first three result pages of the city search.
func (s *Source) Fetch(ctx context.Context, loc scraper.Location) ([]models.RawRecord, error) {
	filter, err := scraper.NewURLFilter("realtor", loc)
	if err != nil {
		return nil, err
	}
	crawl := &scraper.Crawl{
		Site:        s.Name(),
		Base:        base,
		SearchPages: SearchPages(s.cityURL, 3),
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

// SearchPages returns cityURL followed by its /pg-N pages.
func SearchPages(cityURL string, pages int) []string {
	cityURL = strings.TrimRight(cityURL, "/")
	out := []string{cityURL}
	for n := 2; n <= pages; n++ {
		out = append(out, cityURL+"/pg-"+strconv.Itoa(n))
	}
	return out
}

// ParseDetail extracts listing fields from a realtor.com detail page.
func ParseDetail(html string) models.RawRecord {
	doc := scraper.Document(html)
	ld := scraper.JSONLD(doc)
	rec := models.RawRecord{}

	address := scraper.FindString(ld, "streetAddress")
	if address == "" {
		address = scraper.MatchFirst(html, addressPatterns)
	}
	if address == "" {
		address = strings.TrimSpace(doc.Find(`[data-testid="address-line-1"], h1`).First().Text())
	}
	address, _, _ = strings.Cut(address, ",")
	scraper.Set(rec, "address", strings.TrimSpace(address))
	scraper.Set(rec, "city", scraper.FindString(ld, "addressLocality"))
	scraper.Set(rec, "state", scraper.FindString(ld, "addressRegion"))

	price := scraper.MatchFirst(html, pricePatterns)
	if price == "" {
		price = scraper.FindString(ld, "price")
	}
	scraper.Set(rec, "price", price)
	scraper.Set(rec, "beds", scraper.MatchFirst(html, bedPatterns))
	scraper.Set(rec, "baths", scraper.MatchFirst(html, bathPatterns))
	scraper.Set(rec, "lot_sqft", scraper.MatchFirst(html, lotPatterns))
	scraper.Set(rec, "description", scraper.Description(doc))
	return rec
}
