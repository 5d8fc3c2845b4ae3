package push

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sakif/chat-gateway/internal/auth"
	"github.com/sakif/chat-gateway/internal/presence"
)

// Options tune the WebSocket endpoint.
type Options struct {
	// CheckOrigin decides which browser origins may connect. Nil allows
	// same-origin requests only (gorilla's default).
	CheckOrigin func(r *http.Request) bool
	// FrameRate and FrameBurst limit inbound frames per connection.
	FrameRate  float64
	FrameBurst int
	// SendBuffer is the outbound queue length per connection.
	SendBuffer int
	// MaxFrameBytes caps one inbound frame.
	MaxFrameBytes int64

	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

func DefaultOptions() Options {
	return Options{
		FrameRate:     10,
		FrameBurst:    20,
		SendBuffer:    64,
		MaxFrameBytes: 4 << 10,
		PingInterval:  30 * time.Second,
		PongWait:      60 * time.Second,
		WriteWait:     10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.FrameRate <= 0 {
		o.FrameRate = def.FrameRate
	}
	if o.FrameBurst <= 0 {
		o.FrameBurst = def.FrameBurst
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = def.MaxFrameBytes
	}
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = 2 * o.PingInterval
	}
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	return o
}

// Hub upgrades push connections and ties them to the presence registry.
//
// FLOW:
//  1. RequireAuth has already put the caller's uid in the request context.
//  2. The request is upgraded; nothing is registered yet.
//  3. The client sends {"event":"register","data":"<uid>"}; the uid must be
//     the authenticated one. The connection is registered and acked.
//  4. When the read loop ends, the connection is unregistered by handle.
type Hub struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewHub(registry *presence.Registry, opts Options, logger *slog.Logger) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts:   opts,
		logger: logger,
		conns:  make(map[*conn]struct{}),
	}
}

// ServeHTTP handles GET /ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
		return
	}

	if h.isClosed() {
		http.Error(w, `{"error":"unavailable","message":"server shutting down"}`, http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newConn(ws, h.opts.SendBuffer, h.logger)
	if !h.track(c) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.opts.WriteWait))
		_ = ws.Close()
		return
	}
	defer h.untrack(c)

	c.logger.Debug("push connection opened", slog.String("userID", userID))

	go func() {
		defer h.wg.Done()
		c.writeLoop(h.opts)
	}()

	h.readLoop(c, userID)

	if uid, ok := h.registry.Unregister(c); ok {
		c.logger.Debug("push connection released", slog.String("userID", uid))
	}
	c.close()
}

func (h *Hub) readLoop(c *conn, userID string) {
	ws := c.ws
	ws.SetReadLimit(h.opts.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.opts.FrameRate), h.opts.FrameBurst)

	for {
		var frame inboundFrame
		err := ws.ReadJSON(&frame)
		if err != nil && !isFrameError(err) {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("push connection dropped", slog.String("error", err.Error()))
			}
			return
		}

		// Malformed frames count against the limit too.
		if !limiter.Allow() {
			c.sendError("rate_limited", "too many frames")
			return
		}
		if err != nil {
			c.sendError("invalid_frame", "frame must be a JSON object with an event")
			continue
		}

		switch frame.Event {
		case EventRegister:
			h.handleRegister(c, userID, frame.Data)
		default:
			c.sendError("unsupported_event", "unsupported event "+frame.Event)
		}
	}
}

// isFrameError reports whether err came from decoding a frame rather than
// from the connection.
func isFrameError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h *Hub) handleRegister(c *conn, userID string, data json.RawMessage) {
	var announced string
	if err := json.Unmarshal(data, &announced); err != nil || announced == "" {
		c.sendError("invalid_frame", "register expects the user id as a string")
		return
	}
	if announced != userID {
		c.logger.Warn("register for another identity refused",
			slog.String("userID", userID),
			slog.String("announced", announced),
		)
		c.sendError("forbidden", "cannot register as another user")
		return
	}

	h.registry.Register(userID, c)
	if err := c.Send(EventRegistered, map[string]string{"uid": userID}); err != nil {
		c.logger.Debug("register ack not queued", slog.String("error", err.Error()))
	}
}

// track adds c and reserves its writer in the WaitGroup. It refuses once
// Close has started.
func (h *Hub) track(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Len is the number of open push connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close asks every open connection to close and waits for their writers to
// finish. http.Server.Shutdown does not touch hijacked connections, so the
// server calls this during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.conns {
		c.close()
	}
	h.mu.Unlock()

	h.wg.Wait()
}
