// Package zillow scrapes Zillow search pages. Zillow embeds full listing
// cards in the search results, so no detail pages are fetched.
package zillow

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/scraper"
	"devleads/utils"
)

const (
	base         = "https://www.zillow.com"
	sqftPerAcre  = 43560
	nextDataPath = `script#__NEXT_DATA__`
)

var (
	bedsText  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:bds?|beds?)\b`)
	bathsText = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:ba|baths?)\b`)
)

// Source is the Zillow adapter.
type Source struct {
	searchURL   string
	maxListings int
	renderer    scraper.Renderer
	logger      *utils.Logger
}

func New(searchURL string, maxListings int, r scraper.Renderer, logger *utils.Logger) *Source {
	return &Source{searchURL: searchURL, maxListings: maxListings, renderer: r, logger: logger}
}

func (s *Source) Name() string { return "zillow" }

// SearchPages returns searchURL followed by its N_p/ pages.
func SearchPages(searchURL string, pages int) []string {
	searchURL = strings.TrimRight(searchURL, "/") + "/"
	out := []string{searchURL}
	for n := 2; n <= pages; n++ {
		out = append(out, searchURL+strconv.Itoa(n)+"_p/")
	}
	return out
}

// Fetch implements scraper.Source.
func (s *Source) Fetch(ctx context.Context, loc scraper.Location) ([]models.RawRecord, error) {
	filter, err := scraper.NewURLFilter("zillow", loc)
	if err != nil {
		return nil, err
	}

	seen := utils.NewURLSet()
	var records []models.RawRecord
	var lastErr error
	rendered := 0

	for _, page := range SearchPages(s.searchURL, 3) {
		if s.maxListings > 0 && len(records) >= s.maxListings {
			break
		}
		html, err := s.renderer.Render(ctx, page)
		if err != nil {
			lastErr = err
			s.logger.Warn("[zillow] Search page %s failed: %v", page, err)
			continue
		}
		rendered++
		cards := ParseSearchPage(html)
		for _, rec := range cards {
			u, _ := rec["url"].(string)
			if !filter.Match(u) || !seen.Add(u) {
				continue
			}
			rec["source"] = s.Name()
			if _, ok := rec["city"]; !ok {
				rec["city"] = loc.City
			}
			if _, ok := rec["state"]; !ok {
				rec["state"] = loc.State
			}
			records = append(records, rec)
			if s.maxListings > 0 && len(records) >= s.maxListings {
				break
			}
		}
		s.logger.Info("[zillow] %s: %d cards", page, len(cards))
	}
	if rendered == 0 && lastErr != nil {
		return nil, eris.Wrap(lastErr, "zillow: no search page rendered")
	}
	return records, nil
}

// ParseSearchPage reads the listing cards from the page's __NEXT_DATA__
// state, falling back to the rendered property cards.
func ParseSearchPage(html string) []models.RawRecord {
	doc := scraper.Document(html)
	if recs := fromNextData(doc); len(recs) > 0 {
		return recs
	}
	return fromCards(doc)
}

func fromNextData(doc *goquery.Document) []models.RawRecord {
	raw := strings.TrimSpace(doc.Find(nextDataPath).First().Text())
	if raw == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var state any
	if err := dec.Decode(&state); err != nil {
		return nil
	}
	results, ok := scraper.FindKey(state, "listResults")
	if !ok {
		return nil
	}
	items, _ := results.([]any)

	var out []models.RawRecord
	for _, item := range items {
		card, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if rec := fromResult(card); rec["url"] != nil {
			out = append(out, rec)
		}
	}
	return out
}

func fromResult(card map[string]any) models.RawRecord {
	rec := models.RawRecord{}
	if u := str(card["detailUrl"]); u != "" {
		rec["url"] = absolute(u)
	}

	street := str(card["addressStreet"])
	if street == "" {
		street, _, _ = strings.Cut(str(card["address"]), ",")
	}
	scraper.Set(rec, "address", strings.TrimSpace(street))
	scraper.Set(rec, "city", str(card["addressCity"]))
	scraper.Set(rec, "state", str(card["addressState"]))
	scraper.Set(rec, "zip", str(card["addressZipcode"]))

	price := str(card["unformattedPrice"])
	if price == "" {
		price = str(card["price"])
	}
	scraper.Set(rec, "price", price)
	scraper.Set(rec, "beds", str(card["beds"]))
	scraper.Set(rec, "baths", str(card["baths"]))

	value, unit := card["lotAreaValue"], str(card["lotAreaUnit"])
	if value == nil {
		if info, ok := scraper.FindKey(card, "homeInfo"); ok {
			if m, ok := info.(map[string]any); ok {
				value, unit = m["lotAreaValue"], str(m["lotAreaUnit"])
			}
		}
	}
	if lot, ok := lotSqft(value, unit); ok {
		rec["lot_sqft"] = lot
	}
	scraper.Set(rec, "snippet", str(card["flexFieldText"]))
	return rec
}

func fromCards(doc *goquery.Document) []models.RawRecord {
	var out []models.RawRecord
	doc.Find(`article[data-test="property-card"]`).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(`a[data-test="property-card-link"], a[href*="/homedetails/"]`).First().Attr("href")
		if !ok {
			return
		}
		rec := models.RawRecord{"url": absolute(href)}
		address := strings.TrimSpace(card.Find("address").First().Text())
		street, _, _ := strings.Cut(address, ",")
		scraper.Set(rec, "address", strings.TrimSpace(street))
		scraper.Set(rec, "price", strings.TrimSpace(card.Find(`[data-test="property-card-price"]`).First().Text()))

		details := card.Find("ul").First().Text()
		scraper.Set(rec, "beds", scraper.MatchFirst(details, []*regexp.Regexp{bedsText}))
		scraper.Set(rec, "baths", scraper.MatchFirst(details, []*regexp.Regexp{bathsText}))
		out = append(out, rec)
	})
	return out
}

// lotSqft converts a Zillow lot area to square feet.
func lotSqft(value any, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(str(value), ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(unit), "acre") {
		v *= sqftPerAcre
	}
	return v, true
}

func absolute(u string) string {
	if strings.HasPrefix(u, "/") {
		return base + u
	}
	return u
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
