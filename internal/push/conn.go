package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

var (
	ErrQueueFull = errors.New("push: outbound queue full")
	ErrClosed    = errors.New("push: connection closed")
)

// conn is one WebSocket client. Writes happen only in writeLoop; Send just
// queues, so callers (the presence registry among them) never block on the
// network.
type conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newConn(ws *websocket.Conn, buffer int, logger *slog.Logger) *conn {
	id := xid.New().String()
	return &conn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("conn", id)),
	}
}

func (c *conn) ID() string { return c.id }

// Send queues a frame. It drops the frame rather than wait when the queue is
// full.
func (c *conn) Send(event string, payload any) error {
	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("push: encoding %s frame: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

func (c *conn) sendError(code, message string) {
	if err := c.Send(EventError, ErrorData{Code: code, Message: message}); err != nil {
		c.logger.Debug("error frame not queued", slog.String("error", err.Error()))
	}
}

// close stops the connection. writeLoop flushes what is queued, sends a
// close frame and releases the socket. Safe to call more than once.
func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// writeLoop is the only writer on the socket. It drains the queue and keeps
// the connection alive with pings.
func (c *conn) writeLoop(opts Options) {
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.flush(opts)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(opts.WriteWait))
			return

		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg, opts); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil, opts); err != nil {
				return
			}
		}
	}
}

func (c *conn) write(kind int, msg []byte, opts Options) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteWait))
	return c.ws.WriteMessage(kind, msg)
}

// flush writes whatever is still queued without waiting for more.
func (c *conn) flush(opts Options) {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg, opts); err != nil {
				return
			}
		default:
			return
		}
	}
}
