// Package nominatim geocodes free-form addresses against an OpenStreetMap
// Nominatim server.
package nominatim

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// Client implements services.GeocodeOracle.
type Client struct {
	http *resty.Client
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// NewClient creates a client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "application/json")
	return &Client{http: client}
}

// Geocode looks up query. An empty result is not an error; found is false.
func (c *Client) Geocode(ctx context.Context, query string, timeout time.Duration) (float64, float64, bool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var places []place
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "json",
			"limit":  "1",
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "nominatim: search")
	}
	if res.IsError() {
		return 0, 0, false, eris.Errorf("nominatim: search: status %d", res.StatusCode())
	}
	if len(places) == 0 {
		return 0, 0, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "nominatim: parse lat")
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "nominatim: parse lon")
	}
	return lat, lon, true, nil
}
