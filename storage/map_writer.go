package storage

import (
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"devleads/models"
)

var mapTemplate = template.Must(template.New("map").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html,body,#map{height:100%;margin:0}</style>
</head>
<body>
<div id="map"></div>
<script>
var leads = {{.GeoJSON}};
var colors = {HIGH: "#d7301f", MEDIUM: "#fc8d59", LOW: "#2b8cbe"};
var map = L.map("map").setView([{{.CenterLat}}, {{.CenterLon}}], 13);
L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
  maxZoom: 19,
  attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);
L.geoJSON(leads, {
  pointToLayer: function (f, latlng) {
    return L.circleMarker(latlng, {radius: 7, color: colors[f.properties.label] || "#777", fillOpacity: 0.8});
  },
  onEachFeature: function (f, layer) {
    var p = f.properties;
    layer.bindPopup("<b>" + (p.address || "") + "</b><br>" +
      "Label: " + (p.label || "") + "<br>" +
      "Price: " + (p.price || "") + "<br>" +
      "ROI score: " + (p.roi_score === undefined ? "" : p.roi_score) + "<br>" +
      "<a href=\"" + p.url + "\" target=\"_blank\">listing</a>");
  }
}).addTo(map);
</script>
</body>
</html>
`))

// LeadFeatures converts records with coordinates into a GeoJSON feature
// collection. Records without coordinates are skipped.
func LeadFeatures(records []*models.Property) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	for _, r := range records {
		if r.Lat == nil || r.Lon == nil {
			continue
		}
		props := map[string]any{
			"address": r.Address,
			"label":   string(r.Label),
			"url":     r.URL,
		}
		if r.Price != nil {
			props["price"] = *r.Price
		}
		if r.ROIScore != nil {
			props["roi_score"] = *r.ROIScore
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.URL,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Lon, *r.Lat}),
			Properties: props,
		})
	}
	return fc
}

// WriteMap renders records onto a Leaflet page centred on lat/lon and
// returns the number of plotted leads.
func WriteMap(path, title string, centerLat, centerLon float64, records []*models.Property) (int, error) {
	fc := LeadFeatures(records)
	data, err := json.Marshal(fc)
	if err != nil {
		return 0, eris.Wrap(err, "map: encode geojson")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, eris.Wrap(err, "map: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "map: create file %q", path)
	}
	defer f.Close()

	err = mapTemplate.Execute(f, struct {
		Title     string
		GeoJSON   template.JS
		CenterLat float64
		CenterLon float64
	}{title, template.JS(data), centerLat, centerLon})
	if err != nil {
		return 0, eris.Wrap(err, "map: render")
	}
	return len(fc.Features), nil
}
