package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"devleads/models"
	"devleads/utils"
)

// GeocodeOracle resolves an address query to coordinates. found is false when
// the service answered but had no match; err is reserved for transport
// failures.
type GeocodeOracle interface {
	Geocode(ctx context.Context, query string, timeout time.Duration) (lat, lon float64, found bool, err error)
}

// GeocoderConfig holds the geocoding parameters.
type GeocoderConfig struct {
	Country     string
	Timeouts    []time.Duration
	Pause       time.Duration
	FallbackLat float64
	FallbackLon float64
}

// Geocoder fills missing coordinates. Every oracle call is paced; failures
// fall back to a fixed point and never drop the record.
type Geocoder struct {
	oracle GeocodeOracle
	cfg    GeocoderConfig
	pacer  *utils.Pacer
	logger *utils.Logger
}

// NewGeocoder creates a Geocoder. A nil oracle sends every record to the
// fallback.
func NewGeocoder(oracle GeocodeOracle, cfg GeocoderConfig, logger *utils.Logger) *Geocoder {
	if len(cfg.Timeouts) == 0 {
		cfg.Timeouts = []time.Duration{10 * time.Second}
	}
	return &Geocoder{
		oracle: oracle,
		cfg:    cfg,
		pacer:  utils.NewPacer(cfg.Pause),
		logger: logger,
	}
}

// Enrich geocodes every record missing coordinates.
func (g *Geocoder) Enrich(ctx context.Context, records []*models.Property) {
	resolved, fallback := 0, 0
	for _, p := range records {
		if p.Lat != nil && p.Lon != nil {
			continue
		}
		lat, lon, ok := g.locate(ctx, p)
		if !ok {
			fallback++
			lat, lon = g.cfg.FallbackLat, g.cfg.FallbackLon
			p.Degrade(models.StageGeocode, "no match for any address format; fallback coordinates")
		} else {
			resolved++
		}
		p.Lat, p.Lon = &lat, &lon
	}
	g.logger.Info("[geocode] Resolved %d records, %d on fallback", resolved, fallback)
}

func (g *Geocoder) locate(ctx context.Context, p *models.Property) (float64, float64, bool) {
	if g.oracle == nil || strings.TrimSpace(p.Address) == "" {
		return 0, 0, false
	}
	for _, query := range AddressQueries(p.Address, p.City, p.State, g.cfg.Country) {
		for _, timeout := range g.cfg.Timeouts {
			if err := g.pacer.Wait(ctx); err != nil {
				return 0, 0, false
			}
			g.logger.Debug("[geocode] Trying: %s", query)
			lat, lon, found, err := g.oracle.Geocode(ctx, query, timeout)
			if err != nil {
				g.logger.Warn("[geocode] %s (timeout %v): %v", query, timeout, err)
				continue
			}
			if found {
				return lat, lon, true
			}
			break
		}
	}
	g.logger.Warn("[geocode] Could not geocode after all attempts: %s, %s, %s", p.Address, p.City, p.State)
	return 0, 0, false
}

// AddressQueries returns the address formats to try, most specific first.
// Unit suffixes ("#2B") are dropped and an all-caps state is title-cased.
func AddressQueries(address, city, state, country string) []string {
	if i := strings.Index(address, "#"); i >= 0 {
		address = address[:i]
	}
	address = strings.TrimSpace(address)
	if state != "" && state == strings.ToUpper(state) {
		state = cases.Title(language.English).String(strings.ToLower(state))
	}
	if country == "" {
		country = "USA"
	}
	return []string{
		fmt.Sprintf("%s, %s, %s, %s", address, city, state, country),
		fmt.Sprintf("%s, %s, %s", address, city, state),
		fmt.Sprintf("%s, %s", address, city),
	}
}
