// Package events broadcasts domain events to dashboards connected over websocket.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unistock/stockroom/core"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// events buffered per client; a slower client misses events
	sendBuffer = 64
)

// Event is the message sent to subscribers.
type Event struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"at"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	topics []string // topic prefixes; all topics when empty
}

func (c *client) wants(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, prefix := range c.topics {
		if strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}

// Hub keeps track of the connected clients. It implements core.EventPublisher.
type Hub struct {
	logger   core.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

var _ core.EventPublisher = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish queues the event for every interested client without blocking.
func (h *Hub) Publish(topic string, data interface{}) {
	msg, err := json.Marshal(Event{Topic: topic, Data: data, At: time.Now().UTC()})
	if err != nil {
		h.logger.Error(fmt.Sprintf("marshalling %s event: %v", topic, err), err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping event for slow websocket client", map[string]interface{}{"topic": topic})
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client leaves.
// The comma separated "topics" query parameter restricts the events to topics with these prefixes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err // the upgrader already replied
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	for _, topic := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			c.topics = append(c.topics, topic)
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		return conn.Close()
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump discards incoming messages; it detects closed connections and answers pings.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(fmt.Sprintf("websocket read: %v", err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and waits for their goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
