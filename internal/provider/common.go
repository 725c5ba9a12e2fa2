// Package provider holds the external data source clients: OpenWeatherMap
// for current conditions and the USGS FDSN service for seismic events. Every
// request goes through a shared resilience layer so a flapping upstream
// cannot stall callers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls the retry schedule. Delays double per attempt and
// are capped at MaxInterval.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles the HTTP client with its retry settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

var errCircuitOpen = errors.New("circuit breaker open")

// statusToError maps a response status to a retryable error, or nil for a
// success. 4xx other than 429 is terminal and reported as-is; retrying a
// request the upstream already rejected would not change the answer.
func statusToError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return errors.New("rate limited by upstream")
	case status >= 500:
		return fmt.Errorf("upstream server error: %d", status)
	default:
		return fmt.Errorf("unexpected status: %d", status)
	}
}

// doRequestWithResilience issues the request through the circuit breaker,
// retrying with exponential backoff. buildRequest is called per attempt so
// each retry gets a fresh request body and context.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errors.New("http client not configured")
	}

	delay := cfg.Backoff.InitialInterval
	var lastErr error

	for attempt := 0; attempt <= cfg.Backoff.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			if delay *= 2; delay > cfg.Backoff.MaxInterval {
				delay = cfg.Backoff.MaxInterval
			}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		result, err := cb.Execute(func() (any, error) {
			resp, doErr := cfg.Client.Do(req.WithContext(ctx))
			if doErr != nil {
				return nil, doErr
			}
			if statusErr := statusToError(resp.StatusCode); statusErr != nil {
				resp.Body.Close()
				return nil, statusErr
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		// An open circuit means the upstream is known-bad; further retries
		// would gain nothing.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		lastErr = err
	}

	return nil, lastErr
}
