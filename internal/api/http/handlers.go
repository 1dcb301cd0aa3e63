// Package http exposes the tab manager's operation set to the UI shell.
package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitewrap/backend/internal/domain/tabs"
	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/wrapper"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	manager *tabs.Manager
	cfg     *wrapper.Config
}

// NewHandlers creates a new handler set.
func NewHandlers(manager *tabs.Manager, cfg *wrapper.Config) *Handlers {
	return &Handlers{
		manager: manager,
		cfg:     cfg,
	}
}

// Root handles the basic liveness check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sitewrap backend",
		"wrapper": h.cfg.Name,
	})
}

// Health handles the detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"tabs":   h.manager.Stats(),
	})
}

// GetConfig returns the wrapper configuration.
func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg)
}

// ListTabs returns all tabs in display order plus manager stats.
func (h *Handlers) ListTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tabs":  h.manager.List(),
		"stats": h.manager.Stats(),
	})
}

// GetTab returns a single tab.
func (h *Handlers) GetTab(c *gin.Context) {
	tab, ok := h.manager.Get(id.TabID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "tab not found"})
		return
	}
	c.JSON(http.StatusOK, tab)
}

type createTabRequest struct {
	Address     string `json:"address"`
	Background  bool   `json:"background"`
	AfterActive bool   `json:"after_active"`
}

// CreateTab creates a new tab.
func (h *Handlers) CreateTab(c *gin.Context) {
	// An empty body means "open the home address in the foreground".
	var req createTabRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		tab tabs.Tab
		err error
	)
	if req.AfterActive {
		tab, err = h.manager.CreateAfterActive(req.Address, req.Background)
	} else {
		tab, err = h.manager.Create(req.Address, req.Background)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, tab)
}

// CloseTab closes a tab.
func (h *Handlers) CloseTab(c *gin.Context) {
	h.respond(c, h.manager.Close(id.TabID(c.Param("id"))))
}

// CloseOtherTabs closes every tab but the given one.
func (h *Handlers) CloseOtherTabs(c *gin.Context) {
	h.respond(c, h.manager.CloseOthers(id.TabID(c.Param("id"))))
}

// CloseTabsRight closes every tab after the given one.
func (h *Handlers) CloseTabsRight(c *gin.Context) {
	h.respond(c, h.manager.CloseRightOf(id.TabID(c.Param("id"))))
}

// ActivateTab brings a tab to the foreground.
func (h *Handlers) ActivateTab(c *gin.Context) {
	h.respond(c, h.manager.Activate(id.TabID(c.Param("id"))))
}

// DuplicateTab duplicates a tab.
func (h *Handlers) DuplicateTab(c *gin.Context) {
	tab, err := h.manager.Duplicate(id.TabID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tab)
}

type moveTabRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// MoveTab repositions a tab in the order.
func (h *Handlers) MoveTab(c *gin.Context) {
	var req moveTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.manager.Move(req.From, req.To))
}

// SelectNext advances the active tab.
func (h *Handlers) SelectNext(c *gin.Context) {
	h.respond(c, h.manager.SelectNext())
}

// SelectPrevious moves the active tab back.
func (h *Handlers) SelectPrevious(c *gin.Context) {
	h.respond(c, h.manager.SelectPrevious())
}

type selectOrdinalRequest struct {
	Ordinal int `json:"ordinal"`
}

// SelectOrdinal selects a tab by 1-based position.
func (h *Handlers) SelectOrdinal(c *gin.Context) {
	var req selectOrdinalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.manager.SelectOrdinal(req.Ordinal))
}

type navigateRequest struct {
	Address string `json:"address" binding:"required"`
}

// NavigateTab loads an address in a tab's surface.
func (h *Handlers) NavigateTab(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.manager.Navigate(id.TabID(c.Param("id")), req.Address))
}

// ReloadTab reloads a tab.
func (h *Handlers) ReloadTab(c *gin.Context) {
	h.respond(c, h.manager.Reload(id.TabID(c.Param("id"))))
}

// StopTab halts a tab's in-flight load.
func (h *Handlers) StopTab(c *gin.Context) {
	h.respond(c, h.manager.Stop(id.TabID(c.Param("id"))))
}

// BackTab navigates a tab back.
func (h *Handlers) BackTab(c *gin.Context) {
	h.respond(c, h.manager.Back(id.TabID(c.Param("id"))))
}

// ForwardTab navigates a tab forward.
func (h *Handlers) ForwardTab(c *gin.Context) {
	h.respond(c, h.manager.Forward(id.TabID(c.Param("id"))))
}

// respond maps manager results onto HTTP statuses. The manager's silent
// no-op contract means err is nil outside strict mode; the API inherits
// the same leniency.
func (h *Handlers) respond(c *gin.Context, err error) {
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tabs": h.manager.List(), "stats": h.manager.Stats()})
}
