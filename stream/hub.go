// Package stream fans playback events out to websocket viewers, optionally
// through Redis so several server processes can share one session.
package stream

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "playback:"
	channelSuffix = ":events"

	outboxSize = 256
)

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	// outbox feeds the single publisher goroutine, which keeps Redis
	// publishes in Broadcast order and off the caller's goroutine.
	outbox    chan publication
	published chan struct{}
	outMu     sync.RWMutex
	closed    bool
}

type publication struct {
	sessionID string
	payload   []byte
}

type Client struct {
	SessionID string
	Send      chan []byte
}

// NewHub returns a local hub when redisClient is nil. Otherwise it subscribes
// to every playback channel before returning, so nothing published afterwards
// is missed.
func NewHub(ctx context.Context, redisClient *redis.Client) (*Hub, error) {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}
	if redisClient == nil {
		return h, nil
	}

	pubsub := redisClient.PSubscribe(ctx, redisChannel("*"))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to playback events: %w", err)
	}
	h.pubsub = pubsub
	h.outbox = make(chan publication, outboxSize)
	h.published = make(chan struct{})
	go h.subscribeRedis()
	go h.publish()
	return h, nil
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// CloseSession disconnects every viewer of the session by closing its Send
// channel. Later Unregister calls for those clients are no-ops.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[sessionID] {
		close(client.Send)
	}
	delete(h.clients, sessionID)
}

// Clients reports how many viewers are attached to a session.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Broadcast sends payload to every viewer of the session without blocking.
// With Redis the message is queued for publishing and comes back via the
// subscription; when the queue is full, the hub is closed or publishing
// fails, it is delivered locally instead.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	if h.redis != nil && h.enqueue(publication{sessionID: sessionID, payload: payload}) {
		return
	}
	h.deliver(sessionID, payload)
}

func (h *Hub) enqueue(p publication) bool {
	h.outMu.RLock()
	defer h.outMu.RUnlock()
	if h.closed {
		return false
	}
	select {
	case h.outbox <- p:
		return true
	default:
		log.Printf("redis publish queue full, delivering %s locally", p.sessionID)
		return false
	}
}

func (h *Hub) publish() {
	defer close(h.published)
	for p := range h.outbox {
		err := h.redis.Publish(context.Background(), redisChannel(p.sessionID), p.payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
			h.deliver(p.sessionID, p.payload)
		}
	}
}

// deliver drops the message for viewers whose buffer is full.
func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	for msg := range h.pubsub.Channel() {
		sessionID := sessionIDFromChannel(msg.Channel)
		if sessionID == "" {
			continue
		}
		h.deliver(sessionID, []byte(msg.Payload))
	}
}

// Close flushes queued publishes and ends the Redis subscription. The Redis
// client itself belongs to the caller.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	h.outMu.Lock()
	if h.closed {
		h.outMu.Unlock()
		return nil
	}
	h.closed = true
	close(h.outbox)
	h.outMu.Unlock()

	<-h.published
	return h.pubsub.Close()
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	// playback:{session}:events
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
