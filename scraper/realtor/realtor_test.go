package realtor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchPages(t *testing.T) {
	got := SearchPages("https://www.realtor.com/realestateandhomes-search/Newton_MA/", 3)
	assert.Equal(t, []string{
		"https://www.realtor.com/realestateandhomes-search/Newton_MA",
		"https://www.realtor.com/realestateandhomes-search/Newton_MA/pg-2",
		"https://www.realtor.com/realestateandhomes-search/Newton_MA/pg-3",
	}, got)
}

func TestParseDetail(t *testing.T) {
	html := `<html><head><meta property="og:description" content="Needs work, sold as-is."/></head><body>
<script id="__NEXT_DATA__">{"props":{"address":{"line":"","street":"7 Cedar Ln, Newton"},
"list_price":975000,"description":{"beds":3,"baths":1.5,"lot_sqft":10454}}}</script>
</body></html>`

	rec := ParseDetail(html)
	assert.Equal(t, "7 Cedar Ln", rec["address"])
	assert.Equal(t, "975000", rec["price"])
	assert.Equal(t, "3", rec["beds"])
	assert.Equal(t, "1.5", rec["baths"])
	assert.Equal(t, "10454", rec["lot_sqft"])
	assert.Equal(t, "Needs work, sold as-is.", rec["description"])
}

func TestParseDetailVisibleText(t *testing.T) {
	html := `<html><body><h1 data-testid="address-line-1">18 Birch St, Newton, MA 02459</h1>
<li data-testid="property-meta-beds"><span>5</span> bed</li>
<div>21,780 sqft lot</div></body></html>`

	rec := ParseDetail(html)
	assert.Equal(t, "18 Birch St", rec["address"])
	assert.Equal(t, "5", rec["beds"])
	assert.Equal(t, "21,780", rec["lot_sqft"])
	assert.NotContains(t, rec, "price")
}
