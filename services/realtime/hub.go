package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/metrics"
)

const (
	// DefaultMaxClients caps concurrent subscribers when no limit is configured.
	DefaultMaxClients = 100

	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var (
	ErrAtCapacity = errors.New("realtime: subscriber limit reached")
	ErrStopped    = errors.New("realtime: hub stopped")
)

// Envelope is the frame carried by every broadcast and ack.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// Subscriber receives marshaled frames from the hub. A subscriber that
// stops draining its channel is dropped on the next broadcast.
type Subscriber struct {
	ch chan []byte
}

// Frames is the subscriber's receive side. The channel is closed when the
// subscriber is dropped or the hub stops.
func (s *Subscriber) Frames() <-chan []byte { return s.ch }

// Hub fans one marshaled frame per tick out to every subscriber. All
// registry access goes through the mutex, so Subscribe, Unsubscribe,
// Publish and Stop are safe to call from any goroutine.
type Hub struct {
	mu         sync.RWMutex
	subs       map[*Subscriber]struct{}
	maxClients int
	stopped    bool
	upgrader   websocket.Upgrader
}

func NewHub(maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	return &Hub{
		subs:       make(map[*Subscriber]struct{}),
		maxClients: maxClients,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe registers a new subscriber. It fails once the client limit is
// reached so callers can refuse the connection before upgrading it.
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrStopped
	}
	if len(h.subs) >= h.maxClients {
		return nil, ErrAtCapacity
	}

	sub := &Subscriber{ch: make(chan []byte, sendBuffer)}
	h.subs[sub] = struct{}{}
	metrics.WSClients.Set(float64(len(h.subs)))
	log.Debug().Int("clients", len(h.subs)).Msg("Subscriber registered")
	return sub, nil
}

// Unsubscribe drops a subscriber and closes its channel. Safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// remove is called with mu held.
func (h *Hub) remove(sub *Subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	metrics.WSClients.Set(float64(len(h.subs)))
}

// Publish marshals the envelope once and enqueues it for every subscriber.
// Subscribers whose buffer is full are dropped rather than allowed to stall
// the tick.
func (h *Hub) Publish(msgType string, data interface{}) {
	frame, err := marshalEnvelope(msgType, data)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("Failed to marshal broadcast frame")
		return
	}

	h.mu.Lock()
	var dead []*Subscriber
	for sub := range h.subs {
		select {
		case sub.ch <- frame:
		default:
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		h.remove(sub)
	}
	h.mu.Unlock()

	if len(dead) > 0 {
		log.Warn().Int("dropped", len(dead)).Msg("Dropped slow WebSocket subscribers")
	}
}

// sendTo enqueues a frame for a single subscriber if it is still registered.
func (h *Hub) sendTo(sub *Subscriber, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	select {
	case sub.ch <- frame:
	default:
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stop closes every subscriber channel and refuses new subscriptions.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
	metrics.WSClients.Set(0)
	log.Info().Msg("Realtime hub stopped")
}

func marshalEnvelope(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{
		Type: msgType,
		Data: data,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
}
