package redfin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDetailJSONLD(t *testing.T) {
	html := `<html><head>
<meta name="description" content="Tear-down on a large corner lot."/>
<script type="application/ld+json">
{"@type":["Product","RealEstateListing"],
 "offers":{"price":1150000,"priceCurrency":"USD"},
 "mainEntity":{"@type":"SingleFamilyResidence",
   "address":{"streetAddress":"12 Elm St","addressLocality":"Newton","addressRegion":"MA"},
   "numberOfBedrooms":3,"numberOfBathroomsTotal":2}}
</script></head>
<body><div>Lot Size: 12,500 sq ft</div></body></html>`

	rec := ParseDetail(html)
	assert.Equal(t, "12 Elm St", rec["address"])
	assert.Equal(t, "Newton", rec["city"])
	assert.Equal(t, "MA", rec["state"])
	assert.Equal(t, "1150000", rec["price"])
	assert.Equal(t, "3", rec["beds"])
	assert.Equal(t, "2", rec["baths"])
	assert.Equal(t, "12,500", rec["lot_sqft"])
	assert.Equal(t, "Tear-down on a large corner lot.", rec["description"])
}

func TestParseDetailRegexFallback(t *testing.T) {
	html := `<html><head><title>9 Oak Rd, Newton, MA 02465 | Redfin</title></head><body>
<script>root.__reactServerState = {"streetLine":"9 Oak Rd","price":"$899,000","beds":4,"baths":2.5,"lotSize":"8,712"};</script>
</body></html>`

	rec := ParseDetail(html)
	assert.Equal(t, "9 Oak Rd", rec["address"])
	assert.Equal(t, "899,000", rec["price"])
	assert.Equal(t, "4", rec["beds"])
	assert.Equal(t, "2.5", rec["baths"])
	assert.Equal(t, "8,712", rec["lot_sqft"])
	assert.NotContains(t, rec, "description")
}

func TestParseDetailTitleFallback(t *testing.T) {
	rec := ParseDetail(`<html><head><title>44 Walnut St, Newton, MA | Redfin</title></head></html>`)
	assert.Equal(t, "44 Walnut St", rec["address"])
	assert.NotContains(t, rec, "price")
}
