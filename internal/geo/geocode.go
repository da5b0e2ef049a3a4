package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"marketplace/internal/config"
	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
)

// Location is a resolved address position.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// Geocoder resolves free-form addresses against a Nominatim-compatible API.
// Lookups are best-effort decoration for shipping addresses; callers must
// tolerate failure.
type Geocoder struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
	logger    *logger.Logger
}

func NewGeocoder(cfg config.GeocoderConfig, client *http.Client, log *logger.Logger) *Geocoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Geocoder{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Client:    client,
		logger:    log,
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup resolves the query to a location. Returns a provider error when the
// API is unreachable or answers badly, and a validation error when the
// address matches nothing.
func (g *Geocoder) Lookup(ctx context.Context, query string) (*Location, error) {
	if query == "" {
		return nil, marketerr.Validationf("geocode query is empty")
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, marketerr.Providerf("failed to build geocode request: %v", err)
	}
	// Nominatim requires an identifying user agent.
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, marketerr.Providerf("geocode request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, marketerr.Providerf("geocoder returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, marketerr.Providerf("failed to decode geocode response: %v", err)
	}
	if len(results) == 0 {
		return nil, marketerr.Validationf("no location found for %q", query)
	}

	loc := &Location{DisplayName: results[0].DisplayName}
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &loc.Latitude); err != nil {
		return nil, marketerr.Providerf("bad latitude in geocode response: %v", err)
	}
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &loc.Longitude); err != nil {
		return nil, marketerr.Providerf("bad longitude in geocode response: %v", err)
	}

	g.logger.Debug("GEO", fmt.Sprintf("Resolved %q to %f,%f", query, loc.Latitude, loc.Longitude))
	return loc, nil
}
