// Package ws streams tab events to UI clients and accepts tab commands
// over a WebSocket connection.
package ws

import (
	"sync"

	"github.com/sitewrap/backend/internal/domain/tabs"
	"github.com/sitewrap/backend/internal/infrastructure/monitoring"
	"github.com/sitewrap/backend/internal/shared/id"
)

// Message is the wire envelope for everything the backend pushes.
type Message struct {
	Type    string      `json:"type"`
	Event   *tabs.Event `json:"event,omitempty"`
	Tabs    []tabs.Tab  `json:"tabs,omitempty"`
	Stats   *tabs.Stats `json:"stats,omitempty"`
	Address string      `json:"address,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// clientQueue bounds per-client buffering; clients that fall this far
// behind are disconnected rather than allowed to stall the fanout.
const clientQueue = 64

// Hub tracks connected clients and fans tab events out to them. It
// implements tabs.Sink, so it plugs straight into the manager.
type Hub struct {
	mu      sync.RWMutex
	clients map[id.ClientID]chan Message
	metrics *monitoring.Metrics
}

// NewHub creates an empty hub.
func NewHub(metrics *monitoring.Metrics) *Hub {
	return &Hub{
		clients: make(map[id.ClientID]chan Message),
		metrics: metrics,
	}
}

// OnTabEvent implements tabs.Sink.
func (h *Hub) OnTabEvent(event tabs.Event) {
	e := event
	h.broadcast(Message{Type: "tab_event", Event: &e})
}

// BroadcastExternal tells clients to hand an address to the platform's
// default handler.
func (h *Hub) BroadcastExternal(address string) {
	h.broadcast(Message{Type: "open_external", Address: address})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID, ch := range h.clients {
		select {
		case ch <- msg:
			if h.metrics != nil {
				h.metrics.EventPushed()
			}
		default:
			// Queue full; the write pump will notice the close below.
			go h.remove(clientID)
		}
	}
}

// send queues one message for a single client. It reports false when the
// client is gone or its queue is full; holding the lock while sending keeps
// the queue open for the duration.
func (h *Hub) send(clientID id.ClientID, msg Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.clients[clientID]
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// register adds a client and returns its outbound queue.
func (h *Hub) register(clientID id.ClientID) chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Message, clientQueue)
	h.clients[clientID] = ch
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
	return ch
}

// remove drops a client and closes its queue.
func (h *Hub) remove(clientID id.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)
	close(ch)
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
