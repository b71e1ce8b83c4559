// Package stream broadcasts classifier system snapshots to websocket
// subscribers, such as dashboards that draw the population.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"forecast-combiner/internal/metrics"
	"forecast-combiner/internal/xcsf"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Message is the envelope written to subscribers.
type Message struct {
	Type     string        `json:"type"`
	Sent     time.Time     `json:"sent"`
	Snapshot xcsf.Snapshot `json:"snapshot"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithClientsGauge reports the number of connected subscribers.
func WithClientsGauge(g metrics.MetricsGauge) Option {
	return func(h *Hub) { h.clientsGauge = g }
}

// WithDroppedCounter counts snapshots dropped for slow subscribers.
func WithDroppedCounter(c metrics.MetricsCounter) Option {
	return func(h *Hub) { h.dropped = c }
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is an xcsf.Observer that forwards every n-th snapshot to all
// connected websocket subscribers. Slow subscribers miss snapshots rather
// than blocking the learner.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	every   int
	seen    int
	closed  bool

	upgrader     websocket.Upgrader
	clientsGauge metrics.MetricsGauge
	dropped      metrics.MetricsCounter
}

func NewHub(every int, opts ...Option) *Hub {
	if every < 1 {
		every = 1
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		every:   every,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StateChanged implements xcsf.Observer.
func (h *Hub) StateChanged(s xcsf.Snapshot) {
	h.mu.Lock()
	h.seen++
	skip := h.closed || len(h.clients) == 0 || (h.seen-1)%h.every != 0
	h.mu.Unlock()
	if skip {
		return
	}

	data, err := json.Marshal(Message{Type: "snapshot", Sent: time.Now(), Snapshot: s})
	if err != nil {
		log.Warn().Err(err).Int("iteration", s.Iteration).Msg("Failed to encode snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			if h.dropped != nil {
				h.dropped.Inc()
			}
			log.Debug().Str("remote", c.conn.RemoteAddr().String()).Msg("Subscriber too slow, snapshot dropped")
		}
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Stream subscriber connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.clientsGauge != nil {
		h.clientsGauge.Add(1)
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.clientsGauge != nil {
		h.clientsGauge.Add(-1)
	}
}

// readPump discards client messages and unregisters on disconnect.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		log.Info().Str("remote", c.conn.RemoteAddr().String()).Msg("Stream subscriber disconnected")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Stream subscriber closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
