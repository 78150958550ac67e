package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu sync.RWMutex
	subs  map[string]bool // empty = all symbols
}

// clientMsg is an inbound control frame.
//
//	{"type":"SUBSCRIBE","symbols":["TCS"],"lastSeq":{"TCS":41}}
//	{"type":"UNSUBSCRIBE","symbols":["TCS"]}
//	{"type":"PING","ping":1700000000000}
type clientMsg struct {
	Type    string           `json:"type"`
	Symbols []string         `json:"symbols"`
	LastSeq map[string]int64 `json:"lastSeq"`
	Ping    int64            `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn, symbols []string) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			c.subs[s] = true
		}
	}
	return c
}

// wants reports whether sym is in the client's subscription set.
func (c *Client) wants(sym string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs) == 0 || c.subs[sym]
}

// sendInitialState queues the latest envelope for each wanted symbol, or the
// missed envelopes after lastSeq when the ring still covers the gap.
func (c *Client) sendInitialState(lastSeq map[string]int64) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for sym, entry := range c.hub.latest {
		if !c.wants(sym) {
			continue
		}
		if seq, ok := lastSeq[sym]; ok {
			if seq >= entry.Seq {
				continue
			}
			if ring := c.hub.rings[sym]; ring != nil {
				if missed, complete := ring.After(seq); complete {
					for _, e := range missed {
						c.queue(e.Data)
					}
					continue
				}
			}
		}

		var env Envelope
		if json.Unmarshal(entry.Envelope, &env) != nil {
			continue
		}
		env.Initial = true
		data, _ := json.Marshal(env)
		c.queue(data)
	}
}

func (c *Client) queue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch strings.ToUpper(msg.Type) {
		case "SUBSCRIBE":
			c.subMu.Lock()
			for _, s := range msg.Symbols {
				if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
					c.subs[s] = true
				}
			}
			c.subMu.Unlock()
			c.sendInitialState(msg.LastSeq)
		case "UNSUBSCRIBE":
			c.subMu.Lock()
			for _, s := range msg.Symbols {
				delete(c.subs, strings.ToUpper(strings.TrimSpace(s)))
			}
			c.subMu.Unlock()
		case "PING":
			pong, _ := json.Marshal(map[string]int64{"pong": msg.Ping, "ts": time.Now().UnixMilli()})
			c.queue(pong)
		}
	}
}
