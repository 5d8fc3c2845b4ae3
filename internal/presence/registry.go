// Package presence tracks which users have a live push connection and routes
// point-to-point events to them.
//
// Each user id maps to at most one connection; the latest Register wins.
// Disconnects remove entries by connection, never by user id, so a late
// disconnect from a replaced connection cannot evict the newer one.
//
// Delivery is fire-and-forget. An offline user is not an error.
package presence

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Conn is a push connection as the registry sees it. Implementations are
// compared with ==, so use pointer types.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Send queues one named event. It must not block on network I/O.
	Send(event string, payload any) error
}

// Registry maps user ids to connections. The zero value is not usable; call
// New.
type Registry struct {
	mu      sync.Mutex
	byUser  map[string]Conn
	logger  *slog.Logger
	metrics *registryMetrics
}

func New(logger *slog.Logger, reg prometheus.Registerer) *Registry {
	return &Registry{
		byUser:  make(map[string]Conn),
		logger:  logger,
		metrics: newRegistryMetrics(reg),
	}
}

// Register points userID at conn, replacing any earlier connection.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	prev, replaced := r.byUser[userID]
	r.byUser[userID] = conn
	n := len(r.byUser)
	r.mu.Unlock()

	r.metrics.online.Set(float64(n))
	attrs := []any{slog.String("userID", userID), slog.String("conn", conn.ID())}
	if replaced && prev != conn {
		attrs = append(attrs, slog.String("replaced", prev.ID()))
	}
	r.logger.Info("user registered", attrs...)
}

// Unregister removes the entry owned by conn, if any, and returns the user
// id it belonged to.
func (r *Registry) Unregister(conn Conn) (string, bool) {
	r.mu.Lock()
	var userID string
	found := false
	for uid, c := range r.byUser {
		if c == conn {
			userID, found = uid, true
			delete(r.byUser, uid)
			break
		}
	}
	n := len(r.byUser)
	r.mu.Unlock()

	if !found {
		return "", false
	}
	r.metrics.online.Set(float64(n))
	r.logger.Info("user disconnected", slog.String("userID", userID), slog.String("conn", conn.ID()))
	return userID, true
}

// SendToUser hands event to userID's connection. It returns false when the
// user has no connection; a failing Send is logged and still reports true,
// since the event was handed off.
func (r *Registry) SendToUser(userID, event string, payload any) bool {
	r.mu.Lock()
	conn, ok := r.byUser[userID]
	r.mu.Unlock()

	if !ok {
		r.metrics.deliveries.WithLabelValues("offline").Inc()
		r.logger.Debug("push target offline", slog.String("userID", userID), slog.String("event", event))
		return false
	}

	if err := conn.Send(event, payload); err != nil {
		r.metrics.deliveries.WithLabelValues("dropped").Inc()
		r.logger.Warn("push send failed",
			slog.String("userID", userID),
			slog.String("event", event),
			slog.String("conn", conn.ID()),
			slog.String("error", err.Error()),
		)
		return true
	}
	r.metrics.deliveries.WithLabelValues("delivered").Inc()
	return true
}

// IsOnline reports whether userID currently has a connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[userID]
	return ok
}

// Online lists connected user ids in sorted order.
func (r *Registry) Online() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.byUser))
	for uid := range r.byUser {
		ids = append(ids, uid)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}
