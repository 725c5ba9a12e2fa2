package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

// SeismicQuery holds the FDSN event query parameters. Defaults cover the
// Guanacaste region.
type SeismicQuery struct {
	MinMagnitude float64
	Limit        int
	Latitude     float64
	Longitude    float64
	MaxRadiusKM  float64
}

// DefaultSeismicQuery returns the region defaults.
func DefaultSeismicQuery() SeismicQuery {
	return SeismicQuery{
		MinMagnitude: 3.5,
		Limit:        10,
		Latitude:     10.63,
		Longitude:    -85.44,
		MaxRadiusKM:  200,
	}
}

// USGS queries the USGS FDSN event service for recent seismic activity.
// Responses are GeoJSON and passed through untouched.
type USGS struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewUSGS creates a USGS FDSN client.
func NewUSGS(client *http.Client) *USGS {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "usgs",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &USGS{
		baseURL: "https://earthquake.usgs.gov/fdsnws/event/1/query",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: cb,
	}
}

// Events returns the raw GeoJSON feed for the query.
func (p *USGS) Events(ctx context.Context, q SeismicQuery) (json.RawMessage, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "geojson")
		values.Set("minmagnitude", strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64))
		values.Set("limit", strconv.Itoa(q.Limit))
		values.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
		values.Set("maxradiuskm", strconv.FormatFloat(q.MaxRadiusKM, 'f', -1, 64))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read usgs response: %w", err)
	}
	return json.RawMessage(body), nil
}
