package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

// Frames exchanged with clients.
const (
	EventConnectionEstablished = "connection_established"
	EventSubscribe             = "subscribe"
	EventUnsubscribe           = "unsubscribe"
	EventSubscriptionSucceeded = "subscription_succeeded"
	EventSubscriptionError     = "subscription_error"
)

// GrantVerifier checks a subscription grant and returns the user it was
// issued to.
type GrantVerifier interface {
	Verify(grant, socketID, channel string) (string, error)
}

type clientFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Auth    string `json:"auth"`
}

type socket struct {
	id     string
	userID string
	send   chan []byte

	// channels is touched only by the socket's read loop and release.
	channels map[string]struct{}
}

// Hub owns the websocket connections of this node and the channel
// bindings made on them. Events arrive from the Redis bus so a publish on
// any node reaches sockets on every node.
type Hub struct {
	rdb      *redis.Client
	grants   GrantVerifier
	logger   *zap.Logger
	upgrader websocket.Upgrader

	node uint32
	seq  atomic.Uint64

	mu       sync.RWMutex
	bindings map[string]map[*socket]struct{}
}

func NewHub(rdb *redis.Client, grants GrantVerifier, logger *zap.Logger) *Hub {
	return &Hub{
		rdb:    rdb,
		grants: grants,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		node:     rand.Uint32N(1_000_000),
		bindings: make(map[string]map[*socket]struct{}),
	}
}

// Start subscribes to the bus and returns once the subscription is
// confirmed. Delivery runs until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	ps := h.rdb.PSubscribe(ctx, busPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("subscribe realtime bus: %w", err)
	}

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.deliver(strings.TrimPrefix(msg.Channel, busPrefix), []byte(msg.Payload))
			}
		}
	}()
	return nil
}

// ServeWS upgrades the request and serves one socket for userID until it
// disconnects. Every binding made on the socket is released on return.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &socket{
		id:       fmt.Sprintf("%d.%d", h.node, h.seq.Add(1)),
		userID:   userID,
		send:     make(chan []byte, sendBufferSize),
		channels: make(map[string]struct{}),
	}
	log := h.logger.With(zap.String("socket_id", s.id), zap.String("user_id", userID))
	log.Debug("socket connected")

	done := make(chan struct{})
	go h.writeLoop(conn, s, done)

	h.reply(s, Envelope{
		Event: EventConnectionEstablished,
		Data:  mustJSON(map[string]string{"socket_id": s.id}),
	})

	h.readLoop(conn, s, log)

	h.release(s)
	close(done)
	log.Debug("socket disconnected")
}

func (h *Hub) readLoop(conn *websocket.Conn, s *socket, log *zap.Logger) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("socket read error", zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.replyError(s, "", "malformed frame")
			continue
		}

		switch frame.Event {
		case EventSubscribe:
			h.subscribe(s, frame, log)
		case EventUnsubscribe:
			h.unbind(s, frame.Channel)
		default:
			h.replyError(s, frame.Channel, "unknown event")
		}
	}
}

func (h *Hub) subscribe(s *socket, frame clientFrame, log *zap.Logger) {
	grantee, err := h.grants.Verify(frame.Auth, s.id, frame.Channel)
	if err != nil || grantee != s.userID {
		log.Info("subscription rejected", zap.String("channel", frame.Channel), zap.Error(err))
		h.replyError(s, frame.Channel, "subscription not authorized")
		return
	}

	h.mu.Lock()
	subs, ok := h.bindings[frame.Channel]
	if !ok {
		subs = make(map[*socket]struct{})
		h.bindings[frame.Channel] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()
	s.channels[frame.Channel] = struct{}{}

	h.reply(s, Envelope{Event: EventSubscriptionSucceeded, Channel: frame.Channel})
}

func (h *Hub) unbind(s *socket, channel string) {
	h.mu.Lock()
	h.removeLocked(s, channel)
	h.mu.Unlock()
	delete(s.channels, channel)
}

func (h *Hub) release(s *socket) {
	h.mu.Lock()
	for channel := range s.channels {
		h.removeLocked(s, channel)
	}
	h.mu.Unlock()
	clear(s.channels)
}

func (h *Hub) removeLocked(s *socket, channel string) {
	subs, ok := h.bindings[channel]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.bindings, channel)
	}
}

// deliver hands frame to every local socket bound to channel. A socket
// whose buffer is full misses the frame rather than stalling the others.
func (h *Hub) deliver(channel string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.bindings[channel] {
		select {
		case s.send <- frame:
		default:
			h.logger.Warn("socket buffer full, dropping event",
				zap.String("socket_id", s.id),
				zap.String("channel", channel),
			)
		}
	}
}

// BindingCount returns how many sockets on this node are bound to channel.
func (h *Hub) BindingCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bindings[channel])
}

func (h *Hub) reply(s *socket, env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal frame", zap.Error(err))
		return
	}
	select {
	case s.send <- frame:
	default:
	}
}

func (h *Hub) replyError(s *socket, channel, message string) {
	h.reply(s, Envelope{
		Event:   EventSubscriptionError,
		Channel: channel,
		Data:    mustJSON(map[string]string{"error": message}),
	})
}

func (h *Hub) writeLoop(conn *websocket.Conn, s *socket, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
