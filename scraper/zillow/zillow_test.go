package zillow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devleads/scraper"
	"devleads/utils"
)

const nextData = `<html><body><script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"searchPageState":{"cat1":{"searchResults":{"listResults":[
 {"detailUrl":"/homedetails/12-Elm-St-Newton-MA-02465/111_zpid/","addressStreet":"12 Elm St",
  "addressCity":"Newton","addressState":"MA","addressZipcode":"02465","unformattedPrice":1200000,
  "beds":3,"baths":2,"hdpData":{"homeInfo":{"lotAreaValue":0.5,"lotAreaUnit":"acres"}},
  "flexFieldText":"Builder opportunity"},
 {"detailUrl":"https://www.zillow.com/homedetails/1-Main-St-Boston-MA-02110/222_zpid/",
  "address":"1 Main St, Boston, MA 02110","price":"$650,000"},
 {"addressStreet":"no link"}
]}}}}}}
</script></body></html>`

func TestParseSearchPageNextData(t *testing.T) {
	recs := ParseSearchPage(nextData)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "https://www.zillow.com/homedetails/12-Elm-St-Newton-MA-02465/111_zpid/", first["url"])
	assert.Equal(t, "12 Elm St", first["address"])
	assert.Equal(t, "02465", first["zip"])
	assert.Equal(t, "1200000", first["price"])
	assert.Equal(t, "3", first["beds"])
	assert.Equal(t, 21780.0, first["lot_sqft"])
	assert.Equal(t, "Builder opportunity", first["snippet"])

	assert.Equal(t, "1 Main St", recs[1]["address"])
	assert.Equal(t, "$650,000", recs[1]["price"])
}

func TestParseSearchPageCards(t *testing.T) {
	html := `<html><body>
<article data-test="property-card">
  <a data-test="property-card-link" href="/homedetails/9-Oak-Rd-Waban-MA-02468/333_zpid/">
    <address>9 Oak Rd, Waban, MA 02468</address></a>
  <span data-test="property-card-price">$1,050,000</span>
  <ul>
    <li><b>4</b> bds</li>
    <li><b>3</b> ba</li>
  </ul>
</article>
<article data-test="property-card"><address>no link</address></article>
</body></html>`

	recs := ParseSearchPage(html)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://www.zillow.com/homedetails/9-Oak-Rd-Waban-MA-02468/333_zpid/", recs[0]["url"])
	assert.Equal(t, "9 Oak Rd", recs[0]["address"])
	assert.Equal(t, "$1,050,000", recs[0]["price"])
	assert.Equal(t, "4", recs[0]["beds"])
	assert.Equal(t, "3", recs[0]["baths"])
}

func TestSearchPages(t *testing.T) {
	assert.Equal(t, []string{
		"https://www.zillow.com/newton-ma/",
		"https://www.zillow.com/newton-ma/2_p/",
		"https://www.zillow.com/newton-ma/3_p/",
	}, SearchPages("https://www.zillow.com/newton-ma", 3))
}

type pages map[string]string

func (p pages) Render(_ context.Context, u string) (string, error) {
	if html, ok := p[u]; ok {
		return html, nil
	}
	return "", errors.New("blocked")
}

func TestFetchFiltersToMarket(t *testing.T) {
	src := New("https://www.zillow.com/newton-ma/", 10, pages{"https://www.zillow.com/newton-ma/": nextData}, utils.NopLogger())
	recs, err := src.Fetch(context.Background(), scraper.Location{City: "Newton", State: "MA"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "zillow", recs[0]["source"])
	assert.Equal(t, "Newton", recs[0]["city"])
}

func TestFetchAllPagesBlocked(t *testing.T) {
	src := New("https://www.zillow.com/newton-ma/", 10, pages{}, utils.NopLogger())
	_, err := src.Fetch(context.Background(), scraper.Location{City: "Newton", State: "MA"})
	assert.Error(t, err)
}
