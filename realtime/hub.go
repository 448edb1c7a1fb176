package realtime

import (
	"context"
	"sync"

	"droppers-api/logx"
	"droppers-api/metrics"
)

// Relay mirrors locally published frames to other instances.
type Relay interface {
	Forward(ctx context.Context, room string, frame []byte) error
}

// Hub tracks clients and the rooms they joined. Publish never blocks on a
// slow client; a client whose queue is full is disconnected.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	relay   Relay
	log     logx.Logger
	closed  bool
}

func NewHub(log logx.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     log.With(logx.String("component", "realtime")),
	}
}

// SetRelay attaches a cross-instance relay. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.RealtimeConnections.Inc()
	return true
}

// unregister removes c from every room and closes its queue. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.rooms = nil
	close(c.send)
	metrics.RealtimeConnections.Dec()
}

// Join adds c to room. Authorisation is the caller's job.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if c.rooms != nil {
		delete(c.rooms, room)
	}
}

// RoomSize reports how many local clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms lists the rooms c currently belongs to.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// Publish encodes one frame and fans it out to room here and, if a relay is
// attached, on other instances.
func (h *Hub) Publish(ctx context.Context, room, event string, data any) {
	frame, err := encodeFrame(event, "", data)
	if err != nil {
		h.log.Error("encode realtime frame", logx.String("event", event), logx.Err(err))
		return
	}
	metrics.RealtimeEventsTotal.WithLabelValues(event).Inc()
	h.Deliver(room, frame)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(ctx, room, frame); err != nil {
			h.log.Warn("relay forward failed", logx.String("room", room), logx.Err(err))
		}
	}
}

// Deliver hands an encoded frame to every local member of room.
func (h *Hub) Deliver(room string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- frame:
		default:
			h.log.Warn("dropping slow realtime client",
				logx.String("client_id", c.id), logx.String("user_id", c.caller.ID))
			metrics.RealtimeDroppedTotal.Inc()
			h.removeLocked(c)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// send queues a frame for one client. It reports false when the client is
// gone or its queue is full.
func (h *Hub) send(c *Client, frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.RealtimeDroppedTotal.Inc()
		h.removeLocked(c)
		return false
	}
}
