package scraper

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/utils"
)

// Crawl is the harvest-then-detail flow shared by sites whose search pages
// only link to listings: render each search page, keep the detail links that
// pass the filter, then download and parse up to MaxListings detail pages.
type Crawl struct {
	Site        string
	Base        string
	SearchPages []string
	Selectors   []string
	MaxListings int
	Filter      *URLFilter
	Renderer    Renderer
	Fetcher     PageFetcher
	Parse       func(html string) models.RawRecord
	Logger      *utils.Logger
}

// Links renders every search page and returns the filtered detail URLs. It
// fails only when no search page could be rendered.
func (c *Crawl) Links(ctx context.Context) ([]string, error) {
	var all []string
	var lastErr error
	rendered := 0

	for _, page := range c.SearchPages {
		html, err := c.Renderer.Render(ctx, page)
		if err != nil {
			lastErr = err
			c.Logger.Warn("[%s] Search page %s failed: %v", c.Site, page, err)
			continue
		}
		rendered++
		links, err := ExtractLinks(html, c.Base, c.Selectors)
		if err != nil {
			c.Logger.Warn("[%s] Could not parse %s: %v", c.Site, page, err)
			continue
		}
		all = append(all, links...)
	}
	if rendered == 0 && lastErr != nil {
		return nil, eris.Wrapf(lastErr, "%s: no search page rendered", c.Site)
	}

	urls := c.Filter.Filter(all)
	c.Logger.Info("[%s] Harvested %d links, %d detail pages match", c.Site, len(all), len(urls))
	return urls, nil
}

// Run harvests links and parses each detail page. Failed detail pages are
// logged and skipped.
func (c *Crawl) Run(ctx context.Context, loc Location) ([]models.RawRecord, error) {
	urls, err := c.Links(ctx)
	if err != nil {
		return nil, err
	}
	if c.MaxListings > 0 && len(urls) > c.MaxListings {
		urls = urls[:c.MaxListings]
	}

	var records []models.RawRecord
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		html, err := c.Fetcher.Get(ctx, u)
		if err != nil {
			c.Logger.Warn("[%s] Detail %s failed: %v", c.Site, u, err)
			continue
		}
		rec := c.Parse(html)
		rec["url"] = u
		rec["source"] = c.Site
		if _, ok := rec["city"]; !ok {
			rec["city"] = loc.City
		}
		if _, ok := rec["state"]; !ok {
			rec["state"] = loc.State
		}
		records = append(records, rec)
	}
	c.Logger.Info("[%s] Parsed %d of %d detail pages", c.Site, len(records), len(urls))
	return records, nil
}

// MatchFirst returns the first capture group of the first pattern that
// matches, or "".
func MatchFirst(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Document parses html, returning an empty document on malformed input.
func Document(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

// Description returns the page's meta description, used as classifier text.
func Description(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Set stores v under key when it is non-empty.
func Set(rec models.RawRecord, key, v string) {
	if v != "" {
		rec[key] = v
	}
}
