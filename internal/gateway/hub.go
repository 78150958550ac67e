package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"tradesignal/internal/markethours"
	"tradesignal/internal/metrics"
	"tradesignal/internal/model"

	"github.com/gorilla/websocket"
)

// Envelope is the WebSocket frame for one result.
type Envelope struct {
	Type    string          `json:"type"` // "signal"
	Symbol  string          `json:"symbol"`
	Seq     int64           `json:"seq"`
	TS      string          `json:"ts"`
	Initial bool            `json:"initial,omitempty"`
	Data    json.RawMessage `json:"data"`
}

type latestEntry struct {
	Result   model.Result
	Envelope []byte
	Seq      int64
}

// Hub keeps the latest result per symbol and fans results out to WebSocket
// clients. It is also a model.ResultSink, so the engine publishes to it
// directly.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seqs    map[string]int64
	rings   map[string]*Ring

	ringSize int
	session  markethours.Session
	prom     *metrics.Metrics
}

// NewHub creates a hub. prom may be nil.
func NewHub(ringSize int, session markethours.Session, prom *metrics.Metrics) *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		latest:   make(map[string]latestEntry),
		seqs:     make(map[string]int64),
		rings:    make(map[string]*Ring),
		ringSize: ringSize,
		session:  session,
		prom:     prom,
	}
}

// Name implements model.ResultSink.
func (h *Hub) Name() string { return "ws" }

// Publish stores r as the latest for its symbol and broadcasts it.
func (h *Hub) Publish(_ context.Context, r model.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	sym := strings.ToUpper(r.Symbol)

	h.mu.Lock()
	h.seqs[sym]++
	seq := h.seqs[sym]
	env, _ := json.Marshal(Envelope{
		Type:   "signal",
		Symbol: sym,
		Seq:    seq,
		TS:     time.UnixMilli(r.At).UTC().Format(time.RFC3339Nano),
		Data:   data,
	})
	h.latest[sym] = latestEntry{Result: r, Envelope: env, Seq: seq}
	ring, ok := h.rings[sym]
	if !ok {
		ring = NewRing(h.ringSize)
		h.rings[sym] = ring
	}
	ring.Push(seq, env)

	for c := range h.clients {
		if !c.wants(sym) {
			continue
		}
		select {
		case c.send <- env:
		default:
			// slow client; it will resync from the ring on reconnect
		}
	}
	h.mu.Unlock()
	return nil
}

// Latest returns the last result published for symbol.
func (h *Hub) Latest(symbol string) (model.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[strings.ToUpper(symbol)]
	return e.Result, ok
}

// LatestAll returns the latest result for every symbol seen so far.
func (h *Hub) LatestAll() []model.Result {
	h.mu.RLock()
	out := make([]model.Result, 0, len(h.latest))
	for _, e := range h.latest {
		out = append(out, e.Result)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// History returns envelopes for symbol with seq > after.
func (h *Hub) History(symbol string, after int64) ([]Envelope, bool) {
	h.mu.RLock()
	ring, ok := h.rings[strings.ToUpper(symbol)]
	h.mu.RUnlock()
	if !ok {
		return nil, true
	}
	entries, complete := ring.After(after)
	out := make([]Envelope, 0, len(entries))
	for _, e := range entries {
		var env Envelope
		if json.Unmarshal(e.Data, &env) == nil {
			out = append(out, env)
		}
	}
	return out, complete
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Attach registers an upgraded connection. symbols limits the stream; empty
// means every symbol.
func (h *Hub) Attach(conn *websocket.Conn, symbols []string) *Client {
	c := newClient(h, conn, symbols)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	c.sendInitialState(nil)
	go c.writePump()
	go c.readPump()
	return c
}

// removeClient unregisters c and closes its send channel.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
}

// StartStatusBroadcast sends the market session status to every client on
// each interval until ctx is done.
func (h *Hub) StartStatusBroadcast(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			env, _ := json.Marshal(map[string]interface{}{
				"type":         "status",
				"marketOpen":   h.session.IsOpen(now),
				"marketStatus": h.session.Status(now),
				"clients":      h.ClientCount(),
			})
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- env:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
