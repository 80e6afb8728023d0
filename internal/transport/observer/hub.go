package observer

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"digstream.live/internal/protocol"
)

// Hub fans world events out to observer sessions. Publish is called from the
// world loop and never blocks: a session whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan []byte

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: map[string]chan []byte{}}
}

func (h *Hub) Publish(ev protocol.EventMsg) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.published.Add(1)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) subscribe(id string, buf int) chan []byte {
	ch := make(chan []byte, buf)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type HubStats struct {
	Sessions  int    `json:"sessions"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return HubStats{Sessions: n, Published: h.published.Load(), Dropped: h.dropped.Load()}
}
