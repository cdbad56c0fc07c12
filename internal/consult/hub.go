package consult

import "sync"

// Conn is one attached client. Send must not block; it reports false when
// the event was dropped.
type Conn interface {
	ID() string
	Send(ev Event) bool
}

// Hub tracks every attached connection and which session channels each one
// is subscribed to.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	channels map[string]map[string]Conn
	joined   map[string]map[string]struct{} // conn id -> channels
}

func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]Conn),
		channels: make(map[string]map[string]Conn),
		joined:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Remove detaches c from the hub and from every channel it joined.
func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := c.ID()
	delete(h.conns, id)
	for ch := range h.joined[id] {
		h.leaveLocked(ch, id)
	}
	delete(h.joined, id)
}

func (h *Hub) Subscribe(channel string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]Conn)
		h.channels[channel] = members
	}
	members[c.ID()] = c
	if h.joined[c.ID()] == nil {
		h.joined[c.ID()] = make(map[string]struct{})
	}
	h.joined[c.ID()][channel] = struct{}{}
}

// Close drops the channel and all of its subscriptions.
func (h *Hub) Close(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.channels[channel] {
		if j := h.joined[id]; j != nil {
			delete(j, channel)
		}
	}
	delete(h.channels, channel)
}

func (h *Hub) leaveLocked(channel, connID string) {
	members := h.channels[channel]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) Members(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) Broadcast(channel string, ev Event) {
	h.BroadcastExcept(channel, "", ev)
}

// BroadcastExcept delivers to the channel, skipping the connection exceptID.
func (h *Hub) BroadcastExcept(channel, exceptID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.channels[channel] {
		if id == exceptID {
			continue
		}
		c.Send(ev)
	}
}

func (h *Hub) BroadcastAll(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.Send(ev)
	}
}
