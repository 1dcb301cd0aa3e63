package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sitewrap/backend/internal/domain/navigation"
	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/surface"
	"github.com/sitewrap/backend/internal/wrapper"
)

// commandBuffer bounds how many pending operations a surface queues before
// callers block. Navigation bursts beyond this are a UI bug, not a workload.
const commandBuffer = 16

// Surface is one fetch-backed rendering surface. All operations are
// serialized on a single worker goroutine, so the navigation history needs
// no locking; only the in-flight cancel function is shared with Stop and
// guarded by mu.
type Surface struct {
	id      id.SurfaceID
	owner   surface.Notifier
	cfg     *wrapper.Config
	factory *Factory

	commands chan func()
	done     chan struct{}

	// history and cursor are worker-goroutine state.
	history []string
	cursor  int

	mu       sync.Mutex
	inflight context.CancelFunc
	closed   bool
}

// ID implements surface.Surface.
func (s *Surface) ID() id.SurfaceID {
	return s.id
}

// Load routes the address through the navigation policy and, when permitted
// in place, fetches it and pushes the result into the history.
func (s *Surface) Load(address string) {
	s.enqueue(func() {
		target := s.resolve(address)

		decision := navigation.Decide(target, s.cfg)
		if s.factory.metrics != nil {
			s.factory.metrics.RecordPolicyDecision(string(decision))
		}

		switch decision {
		case navigation.PermitInPlace:
			s.load(target, true)
		case navigation.OpenNewTab:
			if s.factory.policy != nil {
				s.factory.policy.OpenTab(target, true)
			}
		case navigation.OpenExternal:
			if s.factory.policy != nil {
				s.factory.policy.OpenExternal(target)
			}
		case navigation.Cancel:
			s.factory.logger.Debug("navigation cancelled",
				zap.String("surface_id", s.id.String()),
				zap.String("address", target),
			)
		}
	})
}

// LoadDirect implements surface.DirectLoader: it fetches the address
// without consulting the navigation policy. The tab manager calls it for
// targets the policy already routed into this surface.
func (s *Surface) LoadDirect(address string) {
	s.enqueue(func() {
		s.load(s.resolve(address), true)
	})
}

// Reload fetches the current address again without touching the history.
func (s *Surface) Reload() {
	s.enqueue(func() {
		if current := s.current(); current != "" {
			s.load(current, false)
		}
	})
}

// Stop cancels the in-flight load, if any.
func (s *Surface) Stop() {
	s.mu.Lock()
	cancel := s.inflight
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Back moves one step back in the history and refetches.
func (s *Surface) Back() {
	s.enqueue(func() {
		if s.cursor > 0 {
			s.cursor--
			s.load(s.history[s.cursor], false)
		}
	})
}

// Forward moves one step forward in the history and refetches.
func (s *Surface) Forward() {
	s.enqueue(func() {
		if s.cursor < len(s.history)-1 {
			s.cursor++
			s.load(s.history[s.cursor], false)
		}
	})
}

// Close releases the surface. No events are emitted after Close returns.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.inflight
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(s.done)
}

// run drains the command queue until the surface closes.
func (s *Surface) run() {
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.commands:
			cmd()
		}
	}
}

func (s *Surface) enqueue(cmd func()) {
	select {
	case <-s.done:
	case s.commands <- cmd:
	}
}

// current returns the history entry under the cursor, worker-side only.
func (s *Surface) current() string {
	if len(s.history) == 0 {
		return ""
	}
	return s.history[s.cursor]
}

// resolve turns a possibly relative address into an absolute one against
// the current page, falling back to the home address.
func (s *Surface) resolve(address string) string {
	parsed, err := url.Parse(address)
	if err != nil {
		return address
	}
	if parsed.IsAbs() {
		return address
	}

	base := s.current()
	if base == "" {
		base = s.cfg.HomeAddress
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return address
	}
	return baseURL.ResolveReference(parsed).String()
}

// load fetches the target and emits state events for every observable
// transition. push appends the final address to the history; back/forward
// and reload refetch in place.
func (s *Surface) load(target string, push bool) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.inflight = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight = nil
		s.mu.Unlock()
		cancel()
	}()

	s.emit(surface.StateEvent{
		Address:  surface.String(target),
		Loading:  surface.Bool(true),
		Progress: surface.Float64(0.1),
	})

	start := time.Now()
	page, err := s.fetch(ctx, target)
	if s.factory.metrics != nil {
		s.factory.metrics.RecordSurfaceLoad(time.Since(start), err == nil)
	}
	if err != nil {
		s.factory.logger.Warn("surface load failed",
			zap.String("surface_id", s.id.String()),
			zap.String("address", target),
			zap.Error(err),
		)
		s.emit(surface.StateEvent{
			Loading:  surface.Bool(false),
			Progress: surface.Float64(0),
		})
		return
	}

	s.emit(surface.StateEvent{Progress: surface.Float64(0.6)})

	// Redirects may land elsewhere; history records where we ended up.
	final := page.finalAddress
	if final == "" {
		final = target
	}
	if push {
		// A push discards any forward entries past the cursor.
		if len(s.history) > 0 {
			s.history = s.history[:s.cursor+1]
		}
		s.history = append(s.history, final)
		s.cursor = len(s.history) - 1
	} else if len(s.history) == 0 {
		s.history = []string{final}
		s.cursor = 0
	} else {
		s.history[s.cursor] = final
	}

	s.emit(surface.StateEvent{
		Title:        surface.String(page.title),
		Address:      surface.String(final),
		Loading:      surface.Bool(false),
		Progress:     surface.Float64(1),
		CanGoBack:    surface.Bool(s.cursor > 0),
		CanGoForward: surface.Bool(s.cursor < len(s.history)-1),
	})
}

type fetchedPage struct {
	title        string
	finalAddress string
}

// fetch retrieves the target through the factory's shared client and
// breaker and extracts the page title.
func (s *Surface) fetch(ctx context.Context, target string) (*fetchedPage, error) {
	req := s.factory.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", userAgent(s.cfg)).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	result, err := s.factory.breaker.Execute(func() (interface{}, error) {
		resp, err := req.Get(target)
		if err != nil {
			return nil, err
		}
		if code := resp.StatusCode(); code < 200 || code >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", code, resp.Status())
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := result.(*resty.Response)

	page := &fetchedPage{finalAddress: target}
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		page.finalAddress = raw.Request.URL.String()
	}

	page.title = extractTitle(resp.String(), page.finalAddress)
	return page, nil
}

// extractTitle pulls the document title, falling back to the page's host.
func extractTitle(body, address string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			return title
		}
	}
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		return u.Host
	}
	return address
}

// emit forwards a state event to the owner unless the surface has closed.
func (s *Surface) emit(event surface.StateEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}
	s.owner.SurfaceStateChanged(s.id, event)
}
