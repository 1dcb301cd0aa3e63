// Package fetch implements a rendering surface over plain HTTP: it fetches
// pages with a retrying client, extracts observable state (title, final
// address) from the response, and reports loading progress to the owning
// tab. It renders nothing; it exists so the backend can drive real
// navigation and history for each tab while an embedded engine handles the
// pixels.
package fetch

import (
	"go.uber.org/zap"

	"github.com/go-resty/resty/v2"

	"github.com/sitewrap/backend/internal/infrastructure/logging"
	"github.com/sitewrap/backend/internal/infrastructure/monitoring"
	"github.com/sitewrap/backend/internal/infrastructure/resilience"
	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/surface"
	"github.com/sitewrap/backend/internal/wrapper"
)

// User agents presented per wrapper policy.
const (
	uaDesktop = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	uaMobile  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
)

// PolicyHandler receives navigations the policy routed away from the
// current surface: new-tab redirects and external handoffs.
type PolicyHandler interface {
	OpenTab(address string, background bool)
	OpenExternal(address string)
}

// Factory creates fetch-backed surfaces sharing one HTTP client and
// circuit breaker.
type Factory struct {
	client  *resty.Client
	breaker *resilience.Breaker
	policy  PolicyHandler
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithPolicyHandler routes new-tab and external navigations.
func WithPolicyHandler(handler PolicyHandler) FactoryOption {
	return func(f *Factory) { f.policy = handler }
}

// WithLogger attaches a logger.
func WithLogger(logger *logging.Logger) FactoryOption {
	return func(f *Factory) { f.logger = logger }
}

// WithMetrics attaches metrics tracking.
func WithMetrics(metrics *monitoring.Metrics) FactoryOption {
	return func(f *Factory) { f.metrics = metrics }
}

// NewFactory creates a surface factory.
func NewFactory(cfg ClientConfig, opts ...FactoryOption) *Factory {
	client, breaker := newClient(cfg)
	f := &Factory{
		client:  client,
		breaker: breaker,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetPolicyHandler wires the handler after construction. The tab manager
// and the factory reference each other, so one side has to be attached
// late.
func (f *Factory) SetPolicyHandler(handler PolicyHandler) {
	f.policy = handler
}

// New implements surface.Factory.
func (f *Factory) New(owner surface.Notifier, cfg *wrapper.Config) (surface.Surface, error) {
	s := &Surface{
		id:       id.NewSurfaceID(),
		owner:    owner,
		cfg:      cfg,
		factory:  f,
		commands: make(chan func(), commandBuffer),
		done:     make(chan struct{}),
	}
	go s.run()

	f.logger.Debug("surface created", zap.String("surface_id", s.id.String()))
	return s, nil
}

// userAgent resolves the wrapper's user-agent policy to a concrete string.
func userAgent(cfg *wrapper.Config) string {
	switch cfg.UserAgent {
	case wrapper.UserAgentMobile:
		return uaMobile
	case wrapper.UserAgentCustom:
		if cfg.CustomUserAgent != "" {
			return cfg.CustomUserAgent
		}
	}
	return uaDesktop
}
