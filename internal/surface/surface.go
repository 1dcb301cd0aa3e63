// Package surface defines the rendering surface contract: the capability set
// the tab manager requires from whatever component actually fetches and
// displays web content. Surfaces run their own execution context and push
// typed state-change events back to their owning tab; the manager never
// renders anything itself.
package surface

import (
	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/wrapper"
)

// StateEvent carries observable surface state changes. Fields are pointers
// so a single event can update any subset; absent fields leave the previous
// value untouched. Updates for the same field are applied in emission order,
// last write wins.
type StateEvent struct {
	Title        *string  `json:"title,omitempty"`
	Address      *string  `json:"address,omitempty"`
	Loading      *bool    `json:"loading,omitempty"`
	Progress     *float64 `json:"progress,omitempty"`
	CanGoBack    *bool    `json:"can_go_back,omitempty"`
	CanGoForward *bool    `json:"can_go_forward,omitempty"`
}

// Notifier receives state events from a surface. The owning tab manager
// serializes delivery onto its own mutation context.
type Notifier interface {
	SurfaceStateChanged(surfaceID id.SurfaceID, event StateEvent)
}

// Surface is one rendering surface handle, owned 1:1 by a tab. All calls are
// fire-and-forget: the surface performs its work asynchronously and reports
// results through the Notifier.
type Surface interface {
	ID() id.SurfaceID

	Load(address string)
	Reload()
	Stop()
	Back()
	Forward()

	// Close releases the surface. No events are emitted after Close returns.
	Close()
}

// DirectLoader is implemented by surfaces that can load an address without
// consulting the navigation policy. The tab manager uses it for targets the
// policy has already routed into a fresh tab, so the redirect cannot
// re-trigger the decision that produced it.
type DirectLoader interface {
	LoadDirect(address string)
}

// Factory creates surfaces. The tab manager holds exactly one factory and
// allocates one surface per tab through it.
type Factory interface {
	New(owner Notifier, cfg *wrapper.Config) (Surface, error)
}

// Ptr helpers for building StateEvents.
func String(s string) *string    { return &s }
func Bool(b bool) *bool          { return &b }
func Float64(f float64) *float64 { return &f }
