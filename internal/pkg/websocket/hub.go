package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and pushes attendance events to them.
// Clients subscribe to a single topic, either one session's feed or a whole
// class's feed.
type Hub struct {
	// Registered clients organized by topic
	clients map[string]map[*Client]bool

	// Channel for events awaiting fan-out
	broadcast chan *AttendanceEvent

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for concurrent access to clients map
	mu sync.RWMutex

	// Logger for Hub operations
	logger zerolog.Logger
}

// AttendanceEvent is pushed to subscribed clients when an attendance record is
// created, by redemption or by manual override.
type AttendanceEvent struct {
	AttendanceID  int64     `json:"attendanceId"`
	StudentID     int64     `json:"studentId"`
	StudentName   string    `json:"studentName"`
	StudentRollNo string    `json:"studentRollNo"`
	SessionID     int64     `json:"sessionId"`
	ClassID       int64     `json:"classId"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// SessionTopic names the feed carrying one session's events.
func SessionTopic(sessionID int64) string {
	return fmt.Sprintf("session:%d", sessionID)
}

// ClassTopic names the feed carrying events for every session of a class.
func ClassTopic(classID int64) string {
	return fmt.Sprintf("class:%d", classID)
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan *AttendanceEvent, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub, handling client registrations and event fan-out
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// registerClient registers a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := client.topic
	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[*Client]bool)
	}
	h.clients[topic][client] = true

	h.logger.Info().
		Str("topic", topic).
		Int64("userID", client.userID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Client registered")
}

// unregisterClient unregisters a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := client.topic
	if _, ok := h.clients[topic]; ok {
		if _, ok := h.clients[topic][client]; ok {
			delete(h.clients[topic], client)
			close(client.send)

			// If no more clients on this topic, clean up
			if len(h.clients[topic]) == 0 {
				delete(h.clients, topic)
			}

			h.logger.Info().
				Str("topic", topic).
				Int64("userID", client.userID).
				Msg("Client unregistered")
		}
	}
}

// broadcastEvent delivers an event to every subscriber of the session feed and
// of the owning class feed.
func (h *Hub) broadcastEvent(event *AttendanceEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("sessionID", event.SessionID).
			Msg("Failed to marshal attendance event")
		return
	}

	h.deliver(SessionTopic(event.SessionID), data)
	h.deliver(ClassTopic(event.ClassID), data)
}

func (h *Hub) deliver(topic string, data []byte) {
	h.mu.RLock()
	clients, ok := h.clients[topic]
	if !ok {
		h.mu.RUnlock()
		return
	}

	var slow []*Client
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send buffer is full, they might be slow or disconnected
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Already on the hub goroutine; sending to h.unregister here would
	// block against our own receiver.
	for _, client := range slow {
		h.unregisterClient(client)
	}
}

// PublishAttendance queues an event for fan-out. Safe to call from any
// goroutine; drops the event rather than block a redemption when the queue
// is saturated.
func (h *Hub) PublishAttendance(event *AttendanceEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().
			Int64("sessionID", event.SessionID).
			Msg("Attendance event dropped, broadcast queue full")
	}
}

// GetClientsCount returns the number of connected clients for a topic
func (h *Hub) GetClientsCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[topic]; ok {
		return len(clients)
	}
	return 0
}
