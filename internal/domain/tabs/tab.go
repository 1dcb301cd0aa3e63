package tabs

import (
	"time"

	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/surface"
)

// Tab is the externally visible snapshot of one browsing session. The
// manager hands out copies; callers never mutate manager state directly.
type Tab struct {
	ID           id.TabID  `json:"id"`
	Title        string    `json:"title"`
	Address      string    `json:"address"`
	Loading      bool      `json:"loading"`
	Progress     float64   `json:"progress"`
	CanGoBack    bool      `json:"can_go_back"`
	CanGoForward bool      `json:"can_go_forward"`
	CreatedAt    time.Time `json:"created_at"`
}

// tab is the manager-internal session record. It owns exactly one surface
// handle, created with the tab and released when the tab closes.
type tab struct {
	Tab
	surface surface.Surface
}

func (t *tab) snapshot() Tab {
	return t.Tab
}

// Stats summarizes manager state for health endpoints.
type Stats struct {
	TotalTabs   int       `json:"total_tabs"`
	ActiveTabID *id.TabID `json:"active_tab_id,omitempty"`
	LoadingTabs int       `json:"loading_tabs"`
}
