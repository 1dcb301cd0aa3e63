package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sitewrap/backend/internal/domain/tabs"
	"github.com/sitewrap/backend/internal/infrastructure/logging"
	"github.com/sitewrap/backend/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The backend binds loopback; the UI shell is the only caller.
		return true
	},
}

const writeTimeout = 10 * time.Second

// Command is a tab operation sent by a UI client.
type Command struct {
	Type       string `json:"type"`
	TabID      string `json:"tab_id,omitempty"`
	Address    string `json:"address,omitempty"`
	Background bool   `json:"background,omitempty"`
	Ordinal    int    `json:"ordinal,omitempty"`
	From       int    `json:"from,omitempty"`
	To         int    `json:"to,omitempty"`
}

// Handler manages WebSocket connections.
type Handler struct {
	hub     *Hub
	manager *tabs.Manager
	logger  *logging.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, manager *tabs.Manager, logger *logging.Logger) *Handler {
	return &Handler{
		hub:     hub,
		manager: manager,
		logger:  logger,
	}
}

// HandleConnection handles WebSocket upgrade, the outbound pump, and inbound
// commands. The pump goroutine is the connection's only writer; snapshot,
// pong, and error replies all go through the client's hub queue.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := id.NewClientID()
	queue := h.hub.register(clientID)
	defer h.hub.remove(clientID)

	h.logger.Debug("client connected", zap.String("client_id", clientID.String()))

	// Outbound pump; closing the connection unblocks the read loop when the
	// hub drops this client.
	go func() {
		defer conn.Close()
		for msg := range queue {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	// Snapshot so a late-joining client starts consistent.
	stats := h.manager.Stats()
	h.hub.send(clientID, Message{
		Type:  "snapshot",
		Tabs:  h.manager.List(),
		Stats: &stats,
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			h.logger.Debug("client disconnected",
				zap.String("client_id", clientID.String()),
				zap.Error(err),
			)
			return
		}
		h.dispatch(clientID, cmd)
	}
}

func (h *Handler) dispatch(clientID id.ClientID, cmd Command) {
	var err error
	switch cmd.Type {
	case "ping":
		h.hub.send(clientID, Message{Type: "pong"})
		return
	case "create_tab":
		_, err = h.manager.Create(cmd.Address, cmd.Background)
	case "close_tab":
		err = h.manager.Close(id.TabID(cmd.TabID))
	case "activate_tab":
		err = h.manager.Activate(id.TabID(cmd.TabID))
	case "duplicate_tab":
		_, err = h.manager.Duplicate(id.TabID(cmd.TabID))
	case "select_next":
		err = h.manager.SelectNext()
	case "select_previous":
		err = h.manager.SelectPrevious()
	case "select_ordinal":
		err = h.manager.SelectOrdinal(cmd.Ordinal)
	case "move_tab":
		err = h.manager.Move(cmd.From, cmd.To)
	case "navigate":
		err = h.manager.Navigate(id.TabID(cmd.TabID), cmd.Address)
	case "reload":
		err = h.manager.Reload(id.TabID(cmd.TabID))
	case "stop":
		err = h.manager.Stop(id.TabID(cmd.TabID))
	case "back":
		err = h.manager.Back(id.TabID(cmd.TabID))
	case "forward":
		err = h.manager.Forward(id.TabID(cmd.TabID))
	default:
		h.sendError(clientID, "unknown command type")
		return
	}

	if err != nil {
		h.sendError(clientID, err.Error())
	}
}

func (h *Handler) sendError(clientID id.ClientID, message string) {
	h.hub.send(clientID, Message{Type: "error", Error: message})
}
