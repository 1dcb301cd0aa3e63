package fetch

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/sitewrap/backend/internal/infrastructure/resilience"
)

// ClientConfig tunes the shared HTTP client behind all surfaces.
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// newClient builds a resty client on a retryable transport plus a circuit
// breaker. All surfaces created by one factory share both: the wrapped site
// is a single origin, so its health is a property of the factory, not of
// any one tab.
func newClient(cfg ClientConfig) (*resty.Client, *resilience.Breaker) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil // Disable retryablehttp's own logging

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("surface-fetch", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return restyClient, breaker
}
