package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// embeddedURLPatterns find detail links inside inline JSON state (Apollo,
// Next.js) that never makes it into an anchor.
var embeddedURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"detailUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"hdpUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"canonicalUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"property_url"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"url"\s*:\s*"(/[^"]+/home/\d+)"`),
}

var jsonSlashes = strings.NewReplacer(`\/`, "/", `\u002F`, "/")

// ExtractLinks collects candidate detail links from a rendered search page:
// anchors matching selectors first, then URLs embedded in page scripts.
// Relative links are resolved against base.
func ExtractLinks(html, base string, selectors []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	var links []string
	add := func(href string) {
		href = strings.TrimSpace(jsonSlashes.Replace(href))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, baseURL.ResolveReference(ref).String())
	}

	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				add(href)
			}
		})
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for _, re := range embeddedURLPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				add(m[1])
			}
		}
	})
	return links, nil
}
