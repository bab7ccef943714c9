// Package ws pushes cart and order events to connected POS terminals.
package ws

import (
	"context"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// Event types.
const (
	EventCartUpdated    = "cart.updated"
	EventOrderCompleted = "order.completed"
	EventOrderCancelled = "order.cancelled"
	EventSlotSelected   = "slot.selected"
	EventMenuItemDelete = "menu.item_deleted"
	EventReportReset    = "report.reset"
)

// Event is a message broadcast to every connected terminal. Slot is omitted
// from the frame when HasSlot is false.
type Event struct {
	Type    string
	Slot    int
	HasSlot bool
	Payload jx.Raw
}

// Encode writes the event frame.
func (ev Event) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(ev.Type) })
		if ev.HasSlot {
			e.Field("slot", func(e *jx.Encoder) { e.Int(ev.Slot) })
		}
		if len(ev.Payload) > 0 {
			e.Field("payload", func(e *jx.Encoder) { e.Raw(ev.Payload) })
		}
	})
}

// Hub maintains the set of connected clients and broadcasts events to them.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	lg *zap.Logger
}

// NewHub creates a Hub. Run must be called for events to be delivered.
func NewHub(lg *zap.Logger) *Hub {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		lg:         lg,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes every
// client. A Hub cannot be restarted.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		for c := range h.clients {
			h.drop(c)
		}
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.lg.Debug("Terminal connected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.lg.Debug("Terminal disconnected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))
			}
		case ev := <-h.broadcast:
			var e jx.Encoder
			ev.Encode(&e)
			msg := e.Bytes()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.lg.Warn("Dropping slow terminal", zap.String("client", c.id))
					h.drop(c)
				}
			}
		}
	}
}

// Publish queues ev for broadcast. When the queue is full the event is
// dropped so that callers never block on slow terminals.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.lg.Warn("Event queue full, dropping event", zap.String("type", ev.Type))
	}
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}
