package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/api"
	"github.com/linesmerrill/donation-checkin-api/models"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// FeedEvent is pushed to dashboards watching an event
type FeedEvent struct {
	Type           string     `json:"type"`
	EventID        string     `json:"eventId"`
	Status         string     `json:"status"`
	Token          string     `json:"token"`
	RegistrationID string     `json:"registrationId"`
	Name           string     `json:"name"`
	TimeSlot       string     `json:"timeSlot"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy     string     `json:"verifiedBy,omitempty"`
	Operator       string     `json:"operator"`
	At             time.Time  `json:"at"`
}

// NewVerificationEvent builds the feed event for a verify result scanned by operator
func NewVerificationEvent(res *models.VerificationResult, operator string) FeedEvent {
	reg := res.Registration
	return FeedEvent{
		Type:           "verification",
		EventID:        reg.EventID,
		Status:         string(res.Status),
		Token:          reg.Token,
		RegistrationID: reg.ID.Hex(),
		Name:           reg.Name,
		TimeSlot:       reg.TimeSlot,
		VerifiedAt:     reg.VerifiedAt,
		VerifiedBy:     reg.VerifiedBy,
		Operator:       operator,
		At:             time.Now().UTC(),
	}
}

// FeedPublisher fans feed events out to every API instance
type FeedPublisher interface {
	Publish(ctx context.Context, eventID string, payload []byte) error
}

// Hub keeps the websocket clients of each event
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]*feedClient
	publisher FeedPublisher
}

// NewHub returns a hub. With a publisher, events go through it and come back
// through Broadcast on every instance, this one included.
func NewHub(publisher FeedPublisher) *Hub {
	return &Hub{
		rooms:     make(map[string]map[string]*feedClient),
		publisher: publisher,
	}
}

type feedClient struct {
	id      string
	eventID string
	conn    *websocket.Conn
	send    chan []byte
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.eventID] == nil {
		h.rooms[c.eventID] = make(map[string]*feedClient)
	}
	h.rooms[c.eventID][c.id] = c
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.eventID]
	if !ok {
		return
	}
	if _, ok := room[c.id]; ok {
		delete(room, c.id)
		close(c.send)
	}
	if len(room) == 0 {
		delete(h.rooms, c.eventID)
	}
}

// Count returns the number of dashboards watching eventID
func (h *Hub) Count(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// Broadcast delivers payload to this instance's clients of eventID. Slow clients miss messages.
func (h *Hub) Broadcast(eventID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- payload:
		default:
			zap.S().Debugw("feed client buffer full, dropping message", "client", c.id, "eventId", eventID)
		}
	}
}

// Publish sends ev to every dashboard watching its event
func (h *Hub) Publish(ctx context.Context, ev FeedEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		zap.S().Errorw("failed to marshal feed event", "error", err)
		return
	}
	if h.publisher != nil {
		err := h.publisher.Publish(ctx, ev.EventID, payload)
		if err == nil {
			return
		}
		zap.S().Warnw("failed to publish feed event, delivering locally", "eventId", ev.EventID, "error", err)
	}
	h.Broadcast(ev.EventID, payload)
}

// Feed serves the live attendance websocket
type Feed struct {
	Hub            *Hub
	AllowedOrigins []string
}

// FeedHandler upgrades the request and streams the event's verification outcomes
func (f Feed) FeedHandler(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event_id"]
	op, ok := api.OperatorFromContext(r.Context())
	if !ok || !canManage(op.Events, eventID) {
		writeError(w, http.StatusForbidden, models.CodeUnauthorized, "operator cannot watch this event")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     f.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &feedClient{
		id:      uuid.New().String(),
		eventID: eventID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	f.Hub.register(c)
	zap.S().Infow("feed client connected", "client", c.id, "eventId", eventID, "operator", op.ID)

	go c.writePump()
	c.readPump(f.Hub)
	zap.S().Infow("feed client disconnected", "client", c.id, "eventId", eventID)
}

func (f Feed) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range f.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// readPump only watches for the peer going away, dashboards do not send messages
func (c *feedClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
