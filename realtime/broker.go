// Package realtime pushes per-user events to connected clients over
// Server-Sent Events and WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// clientBuffer is how many undelivered events a client may queue before drops
const clientBuffer = 16

// Message is the wire shape of every event
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type subscription struct {
	userID int64
	ch     chan []byte
}

type delivery struct {
	userID int64
	data   []byte
}

// Broker fans events out to the connections of their addressee
type Broker struct {
	clients    map[int64]map[chan []byte]bool
	register   chan subscription
	unregister chan subscription
	publish    chan delivery
	count      chan chan int
	done       chan struct{}
	logger     *zap.Logger
}

// NewBroker creates a new event broker. Run must be started before use.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		clients:    make(map[int64]map[chan []byte]bool),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		publish:    make(chan delivery, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client table until ctx is cancelled
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			for _, set := range b.clients {
				for ch := range set {
					close(ch)
				}
			}
			b.clients = map[int64]map[chan []byte]bool{}
			return

		case sub := <-b.register:
			set, ok := b.clients[sub.userID]
			if !ok {
				set = make(map[chan []byte]bool)
				b.clients[sub.userID] = set
			}
			set[sub.ch] = true
			b.logger.Debug("realtime client connected", zap.Int64("user_id", sub.userID), zap.Int("connections", len(set)))

		case sub := <-b.unregister:
			if set, ok := b.clients[sub.userID]; ok && set[sub.ch] {
				delete(set, sub.ch)
				close(sub.ch)
				if len(set) == 0 {
					delete(b.clients, sub.userID)
				}
				b.logger.Debug("realtime client disconnected", zap.Int64("user_id", sub.userID))
			}

		case d := <-b.publish:
			for ch := range b.clients[d.userID] {
				select {
				case ch <- d.data:
				default:
					// Slow client, drop rather than block everyone else
				}
			}

		case reply := <-b.count:
			n := 0
			for _, set := range b.clients {
				n += len(set)
			}
			reply <- n
		}
	}
}

// Subscribe registers a connection for userID. The channel is closed when the
// returned cancel func runs or the broker stops.
func (b *Broker) Subscribe(userID int64) (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuffer)
	sub := subscription{userID: userID, ch: ch}

	select {
	case b.register <- sub:
	case <-b.done:
		close(ch)
		return ch, func() {}
	}

	return ch, func() {
		select {
		case b.unregister <- sub:
		case <-b.done:
		}
	}
}

// Publish queues an event for every connection of userID. It never blocks.
func (b *Broker) Publish(userID int64, event string, payload interface{}) {
	data, err := json.Marshal(Message{Event: event, Payload: payload})
	if err != nil {
		b.logger.Error("failed to marshal realtime event", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case b.publish <- delivery{userID: userID, data: data}:
	default:
		b.logger.Warn("realtime publish buffer full, dropping event", zap.String("event", event))
	}
}

// Connections returns the number of open connections
func (b *Broker) Connections() int {
	reply := make(chan int, 1)
	select {
	case b.count <- reply:
		return <-reply
	case <-b.done:
		return 0
	}
}

// ServeSSE streams userID's events as Server-Sent Events until the client leaves
func (b *Broker) ServeSSE(w http.ResponseWriter, r *http.Request, userID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := b.Subscribe(userID)
	defer cancel()

	// Opening comment so clients see the stream immediately
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
