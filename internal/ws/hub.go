package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meetingflow/backend/internal/metrics"
)

// Conn is the subset of the websocket connection the hub writes to.
// *websocket.Conn satisfies it; tests substitute a recording fake.
type Conn interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Client is one registered connection. The hub owns all mutable fields;
// writeMu serializes frame writes because the transport allows a single
// concurrent writer.
type Client struct {
	id   string
	conn Conn

	writeMu sync.Mutex

	// guarded by the hub mutex
	meetingID string
	alive     bool
	lastPong  time.Time
}

// ID returns the connection identity assigned at admit time.
func (c *Client) ID() string {
	return c.id
}

// Hub tracks every open connection, its meeting association and its
// liveness state, and implements best-effort group broadcast.
type Hub struct {
	pingInterval time.Duration
	logger       zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates the connection registry. pingInterval is the liveness
// sweep period; a connection survives only if it answers within one full
// period.
func NewHub(pingInterval time.Duration, logger zerolog.Logger) *Hub {
	return &Hub{
		pingInterval: pingInterval,
		logger:       logger.With().Str("component", "hub").Logger(),
		clients:      make(map[string]*Client),
		done:         make(chan struct{}),
	}
}

// Admit registers a connection, assigns it a fresh identity and reports
// the new occupancy to that connection only.
func (h *Hub) Admit(conn Conn) *Client {
	client := &Client{
		id:       uuid.NewString(),
		conn:     conn,
		alive:    true,
		lastPong: time.Now(),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	h.logger.Info().Str("client_id", client.id).Int("active", total).Msg("client connected")

	if err := h.SendTo(client, NewConnectionStatus(total)); err != nil {
		h.logger.Warn().Err(err).Str("client_id", client.id).Msg("failed to send connection status")
	}

	return client
}

// JoinMeeting records the meeting association for one connection.
// Rejoining overwrites the prior association. Meeting existence is not
// validated here.
func (h *Hub) JoinMeeting(clientID, meetingID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		client.meetingID = meetingID
	}
}

// MeetingOf reports the meeting a connection has joined, if any.
func (h *Hub) MeetingOf(clientID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	if !ok || client.meetingID == "" {
		return "", false
	}
	return client.meetingID, true
}

// HandlePong marks a connection alive for the current probe cycle.
func (h *Hub) HandlePong(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		client.alive = true
		client.lastPong = time.Now()
	}
}

// Remove deregisters a connection on close or error and broadcasts the
// decremented occupancy to the remaining clients.
func (h *Hub) Remove(clientID string) {
	h.mu.Lock()
	_, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	metrics.ActiveConnections.Dec()
	h.logger.Info().Str("client_id", clientID).Int("active", total).Msg("client disconnected")
	h.BroadcastAll(NewConnectionStatus(total))
}

// SendTo delivers one event to one connection.
func (h *Hub) SendTo(client *Client, msg Message) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	if err := client.conn.WriteJSON(msg); err != nil {
		metrics.SendFailuresTotal.Inc()
		return err
	}
	metrics.BroadcastsTotal.Inc()
	return nil
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// BroadcastAll delivers an event to every registered connection. Delivery
// is fire-and-forget per recipient: a failed send is logged and skipped,
// never blocking delivery to the others.
func (h *Hub) BroadcastAll(msg Message) {
	for _, client := range h.snapshot() {
		if err := h.SendTo(client, msg); err != nil {
			h.logger.Warn().Err(err).Str("client_id", client.id).Msg("broadcast send failed")
		}
	}
}

// BroadcastToMeeting delivers an event to the connections joined to one
// meeting. Connections with no association never receive meeting events.
func (h *Hub) BroadcastToMeeting(meetingID string, msg Message) {
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if client.meetingID == meetingID {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		if err := h.SendTo(client, msg); err != nil {
			h.logger.Warn().Err(err).Str("client_id", client.id).Str("meeting_id", meetingID).Msg("meeting broadcast send failed")
		}
	}
}

// ActiveConnections returns the number of registered connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ActiveMeetings returns the number of distinct joined meetings.
func (h *Hub) ActiveMeetings() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	meetings := make(map[string]struct{})
	for _, client := range h.clients {
		if client.meetingID != "" {
			meetings[client.meetingID] = struct{}{}
		}
	}
	return len(meetings)
}

// Run drives the periodic liveness sweep until the context is cancelled
// or Shutdown is called.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Shutdown stops the liveness sweeper. In-flight broadcasts are not
// drained; the HTTP server owns the transport acceptor.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// sweep implements two-cycle dead-peer detection: connections that did
// not answer the previous probe are terminated, survivors are marked
// stale and probed again. The updated occupancy is broadcast afterwards.
func (h *Hub) sweep() {
	h.mu.Lock()
	var evicted []*Client
	var survivors []*Client
	for id, client := range h.clients {
		if !client.alive {
			delete(h.clients, id)
			evicted = append(evicted, client)
			continue
		}
		client.alive = false
		survivors = append(survivors, client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	for _, client := range evicted {
		metrics.ActiveConnections.Dec()
		metrics.EvictionsTotal.Inc()
		h.logger.Info().Str("client_id", client.id).Msg("terminating unresponsive client")
		if err := client.conn.Close(); err != nil {
			h.logger.Debug().Err(err).Str("client_id", client.id).Msg("close failed during eviction")
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, client := range survivors {
		if err := client.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			h.logger.Warn().Err(err).Str("client_id", client.id).Msg("ping failed")
		}
	}

	h.BroadcastAll(NewConnectionStatus(total))
}
