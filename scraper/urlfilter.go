package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"devleads/utils"
)

// URLFilter keeps detail-page URLs for one site and market.
type URLFilter struct {
	pattern *regexp.Regexp
}

// NewURLFilter builds the detail-URL pattern for site ("redfin", "realtor" or
// "zillow") in loc. Realtor and Zillow also accept neighborhood names in
// place of the city.
func NewURLFilter(site string, loc Location) (*URLFilter, error) {
	state := regexp.QuoteMeta(loc.State)
	places := []string{slug(loc.City)}
	for _, n := range loc.Neighborhoods {
		places = append(places, slug(n))
	}
	alt := "(?:" + strings.Join(places, "|") + ")"

	var expr string
	switch site {
	case "redfin":
		expr = fmt.Sprintf(`^https?://(?:www\.)?redfin\.com/%s/%s/.+/home/\d+/?$`, state, slug(loc.City))
	case "realtor":
		expr = fmt.Sprintf(`^https?://(?:www\.)?realtor\.com/realestateandhomes-detail/.+%s.*-%s(?:-\d{5})?(?:[/?#].*)?$`, alt, state)
	case "zillow":
		expr = fmt.Sprintf(`^https?://(?:www\.)?zillow\.com/(?:homedetails|b)/.+%s.*-%s(?:-\d{5})?/.+?(?:_zpid)?/?(?:[?#].*)?$`, alt, state)
	default:
		return nil, eris.Errorf("scraper: no url filter for site %q", site)
	}

	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: compile %s filter", site)
	}
	return &URLFilter{pattern: re}, nil
}

// Match reports whether u is a detail page for the market.
func (f *URLFilter) Match(u string) bool {
	return f.pattern.MatchString(strings.TrimSpace(u))
}

// Filter returns the matching URLs, deduplicated, in input order.
func (f *URLFilter) Filter(urls []string) []string {
	seen := utils.NewURLSet()
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !f.Match(u) || !seen.Add(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// slug turns "West Newton" into the "West-Newton" form used in URLs.
func slug(s string) string {
	return regexp.QuoteMeta(strings.Join(strings.Fields(s), "-"))
}
