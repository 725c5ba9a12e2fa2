package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/guanacaste-labs/climatrack/internal/snapshot"
)

// Default UV index reported when the endpoint omits it; the current-weather
// API does not include UV data on the free tier.
const defaultUVIndex = 5.0

// OpenWeather fetches current conditions from OpenWeatherMap and normalizes
// them into a Snapshot.
type OpenWeather struct {
	apiKey  string
	units   string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenWeather creates an OpenWeatherMap client.
func NewOpenWeather(client *http.Client, apiKey, units string) *OpenWeather {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	if units == "" {
		units = "metric"
	}

	return &OpenWeather{
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: cb,
	}
}

// Current returns the normalized current conditions for a city/country pair.
func (p *OpenWeather) Current(ctx context.Context, city, country string) (snapshot.Snapshot, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", p.units)
		q := city
		if country != "" {
			q = fmt.Sprintf("%s,%s", city, country)
		}
		values.Set("q", q)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode openweather response: %w", err)
	}

	snap := snapshot.Snapshot{
		snapshot.FieldTemperature: payload.Main.Temp,
		snapshot.FieldHumidity:    payload.Main.Humidity,
		snapshot.FieldWindSpeed:   payload.Wind.Speed,
		snapshot.FieldUVIndex:     defaultUVIndex,
		snapshot.FieldAvgTemp:     payload.Main.Temp,
	}
	if len(payload.Weather) > 0 {
		snap[snapshot.FieldDescription] = payload.Weather[0].Description
		snap["icon"] = payload.Weather[0].Icon
	}
	return snap, nil
}
