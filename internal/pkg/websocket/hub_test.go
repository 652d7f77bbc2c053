package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func addTestClient(h *Hub, topic string, buffer int) *Client {
	client := &Client{
		hub:   h,
		send:  make(chan []byte, buffer),
		topic: topic,
	}
	h.mu.Lock()
	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[*Client]bool)
	}
	h.clients[topic][client] = true
	h.mu.Unlock()
	return client
}

func testEvent() *AttendanceEvent {
	return &AttendanceEvent{
		AttendanceID: 1,
		StudentID:    7,
		StudentName:  "Ada Lovelace",
		SessionID:    10,
		ClassID:      100,
		Status:       "PRESENT",
		Timestamp:    time.Now(),
	}
}

func TestTopicNames(t *testing.T) {
	if got := SessionTopic(42); got != "session:42" {
		t.Errorf("SessionTopic = %q", got)
	}
	if got := ClassTopic(7); got != "class:7" {
		t.Errorf("ClassTopic = %q", got)
	}
}

func TestBroadcastReachesSessionAndClassFeeds(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sessionSub := addTestClient(hub, SessionTopic(10), 1)
	classSub := addTestClient(hub, ClassTopic(100), 1)
	other := addTestClient(hub, SessionTopic(99), 1)

	hub.broadcastEvent(testEvent())

	for name, client := range map[string]*Client{"session subscriber": sessionSub, "class subscriber": classSub} {
		select {
		case data := <-client.send:
			var event AttendanceEvent
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("%s: bad payload: %v", name, err)
			}
			if event.StudentName != "Ada Lovelace" {
				t.Errorf("%s: event = %+v", name, event)
			}
		default:
			t.Errorf("%s received nothing", name)
		}
	}

	select {
	case <-other.send:
		t.Error("unrelated topic received the event")
	default:
	}
}

func TestSlowClientIsEvicted(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := addTestClient(hub, SessionTopic(10), 1)
	slow.send <- []byte("stuck")

	done := make(chan struct{})
	go func() {
		// broadcastEvent runs on the hub goroutine in production; it must
		// evict the slow client itself without a channel round-trip.
		hub.broadcastEvent(testEvent())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}

	if got := hub.GetClientsCount(SessionTopic(10)); got != 0 {
		t.Errorf("clients on topic = %d, want 0", got)
	}
	<-slow.send // the stuck message
	if _, open := <-slow.send; open {
		t.Error("evicted client's send channel left open")
	}
}

func TestHubSurvivesSlowClientEviction(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	slow := addTestClient(hub, SessionTopic(10), 1)
	slow.send <- []byte("stuck")

	hub.PublishAttendance(testEvent())

	deadline := time.After(2 * time.Second)
	for hub.GetClientsCount(SessionTopic(10)) != 0 {
		select {
		case <-deadline:
			t.Fatal("slow client never evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// If eviction had deadlocked the Run loop, this send would never
	// complete and the feed would be dead for the process lifetime.
	stranger := &Client{hub: hub, send: make(chan []byte, 1), topic: SessionTopic(99)}
	select {
	case hub.unregister <- stranger:
	case <-time.After(2 * time.Second):
		t.Fatal("hub goroutine stopped responding after evicting a slow client")
	}
}

func TestPublishAttendanceNeverBlocks(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	done := make(chan struct{})
	go func() {
		// Nothing drains broadcast; overflow must be dropped, not block.
		for i := 0; i < 200; i++ {
			hub.PublishAttendance(testEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishAttendance blocked on a saturated queue")
	}
}

func TestGetClientsCountEmptyTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if got := hub.GetClientsCount("session:1"); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}
