package geo_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketplace/internal/config"
	"marketplace/internal/geo"
	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
)

func newGeocoder(baseURL string) *geo.Geocoder {
	cfg := config.GeocoderConfig{BaseURL: baseURL, UserAgent: "marketplace-test/1.0"}
	return geo.NewGeocoder(cfg, http.DefaultClient, logger.NopLogger())
}

func TestLookupResolvesAddress(t *testing.T) {
	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `[{"lat":"52.5170365","lon":"13.3888599","display_name":"Berlin, Germany"}]`)
	}))
	defer server.Close()

	loc, err := newGeocoder(server.URL).Lookup(context.Background(), "Berlin")

	assert.NoError(t, err)
	assert.Equal(t, "Berlin, Germany", loc.DisplayName)
	assert.InDelta(t, 52.5170365, loc.Latitude, 0.0001)
	assert.InDelta(t, 13.3888599, loc.Longitude, 0.0001)
	assert.Equal(t, "marketplace-test/1.0", gotUA)
	assert.Equal(t, "Berlin", gotQuery)
}

func TestLookupNoMatchIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	loc, err := newGeocoder(server.URL).Lookup(context.Background(), "nowhere at all")

	assert.Nil(t, loc)
	assert.True(t, marketerr.IsValidation(err))
}

func TestLookupEmptyQuery(t *testing.T) {
	loc, err := newGeocoder("http://unused.invalid").Lookup(context.Background(), "")

	assert.Nil(t, loc)
	assert.True(t, marketerr.IsValidation(err))
}

func TestLookupUpstreamFailureIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	loc, err := newGeocoder(server.URL).Lookup(context.Background(), "Berlin")

	assert.Nil(t, loc)
	assert.True(t, marketerr.IsProvider(err))
}

func TestLookupBadPayloadIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"a list"}`)
	}))
	defer server.Close()

	loc, err := newGeocoder(server.URL).Lookup(context.Background(), "Berlin")

	assert.Nil(t, loc)
	assert.True(t, marketerr.IsProvider(err))
}
