// Package directory keeps an in-memory snapshot of the chat platform's users.
//
// LIFECYCLE:
// The cache starts empty and unloaded. The first read fetches one bounded
// page (Options.PageSize) from upstream and keeps it; later reads are served
// from memory. Users created through Create are appended locally. Nothing is
// ever refreshed or invalidated: callers that need fresh data ask the
// upstream gateway directly.
//
// CONCURRENCY:
// Two requests that both find the cache unloaded may both fetch. The first
// one to take the write lock stores its result; the other result is dropped.
// No upstream call is made while holding the lock.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/upstream"
)

// DefaultThreshold is the highest Scorer distance Search still returns.
const DefaultThreshold = 0.3

// Upstream is the slice of upstream.Gateway the cache depends on.
type Upstream interface {
	ListUsers(ctx context.Context, opts upstream.ListUsersOptions) ([]model.UserRecord, error)
	CreateUser(ctx context.Context, req upstream.CreateUserRequest) (model.UserRecord, error)
}

// Options tune loading and search.
type Options struct {
	// PageSize is the single page fetched on first load.
	PageSize int
	// Scorer ranks search candidates. Nil means TokenScorer.
	Scorer Scorer
	// Threshold is the maximum score (inclusive) a search hit may have.
	// Nil means DefaultThreshold; 0 keeps exact matches only.
	Threshold *float64
	// Limit caps search results. Zero means no cap.
	Limit int
	// StrictCreate serializes Create so the duplicate-email check and the
	// append happen atomically within this process.
	StrictCreate bool
}

func DefaultOptions() Options {
	threshold := DefaultThreshold
	return Options{
		PageSize:  upstream.DefaultPageSize,
		Scorer:    TokenScorer{},
		Threshold: &threshold,
	}
}

// Match is one search hit. Lower Score is closer.
type Match struct {
	User  model.UserRecord
	Score float64
}

// Cache is the user directory. Build one with New and share the pointer.
type Cache struct {
	up        Upstream
	opts      Options
	threshold float64
	logger    *slog.Logger
	metrics   *cacheMetrics

	mu     sync.RWMutex
	loaded bool
	users  []model.UserRecord

	createMu sync.Mutex
}

// New builds an unloaded Cache. Zero-valued options fall back to defaults.
func New(up Upstream, opts Options, logger *slog.Logger, reg prometheus.Registerer) *Cache {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.Scorer == nil {
		opts.Scorer = def.Scorer
	}
	if opts.Threshold == nil {
		opts.Threshold = def.Threshold
	}
	return &Cache{
		up:        up,
		opts:      opts,
		threshold: *opts.Threshold,
		logger:    logger,
		metrics:   newCacheMetrics(reg),
	}
}

// Loaded reports whether the initial fetch has completed.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len is the number of cached users.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// EnsureLoaded returns the cached users, fetching them first if needed.
//
// An upstream failure is returned as apperror.ErrUnavailable and leaves the
// cache unloaded, so the next call tries again. It never reports an outage
// as an empty directory.
func (c *Cache) EnsureLoaded(ctx context.Context) ([]model.UserRecord, error) {
	c.mu.RLock()
	if c.loaded {
		users := slices.Clone(c.users)
		c.mu.RUnlock()
		return users, nil
	}
	c.mu.RUnlock()

	fetched, err := c.up.ListUsers(ctx, upstream.ListUsersOptions{PerPage: c.opts.PageSize})
	if err != nil {
		c.metrics.loads.WithLabelValues("error").Inc()
		if !errors.Is(err, apperror.ErrUnavailable) {
			err = apperror.Unavailable("loading user directory", err)
		}
		return nil, fmt.Errorf("directory: loading users: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		// Another request finished first; its snapshot wins.
		c.metrics.loads.WithLabelValues("discarded").Inc()
		return slices.Clone(c.users), nil
	}

	c.users = mergeAppended(fetched, c.users)
	c.loaded = true
	c.metrics.loads.WithLabelValues("ok").Inc()
	c.metrics.size.Set(float64(len(c.users)))
	c.logger.Info("user directory loaded", slog.Int("users", len(c.users)))

	return slices.Clone(c.users), nil
}

// mergeAppended keeps records appended before the first load that the
// fetched page does not already contain.
func mergeAppended(fetched, appended []model.UserRecord) []model.UserRecord {
	users := slices.Clone(fetched)
	if len(appended) == 0 {
		return users
	}
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		seen[u.UID] = struct{}{}
	}
	for _, u := range appended {
		if _, ok := seen[u.UID]; !ok {
			users = append(users, u)
		}
	}
	return users
}

// FindByEmail returns the first cached user whose metadata email equals
// email exactly (case-sensitive), or nil if there is none.
func (c *Cache) FindByEmail(ctx context.Context, email string) (*model.UserRecord, error) {
	if email == "" {
		return nil, nil
	}
	users, err := c.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email() == email {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}

// Append adds a user created by this process. It does not fetch.
func (c *Cache) Append(user model.UserRecord) {
	c.mu.Lock()
	c.users = append(c.users, user)
	n := len(c.users)
	c.mu.Unlock()

	c.metrics.size.Set(float64(n))
}

// Search returns users whose name or email is close to query, closest first.
// Ties keep directory order.
func (c *Cache) Search(ctx context.Context, query string) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Match{}, nil
	}

	users, err := c.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0)
	for _, u := range users {
		score := c.opts.Scorer.Score(query, u.Name, u.Email())
		if score <= c.threshold {
			matches = append(matches, Match{User: u, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})
	if c.opts.Limit > 0 && len(matches) > c.opts.Limit {
		matches = matches[:c.opts.Limit]
	}
	return matches, nil
}

// Create registers a new user upstream unless one with the same email is
// already cached, then appends it.
//
// Without StrictCreate the check and the create are not atomic: two
// concurrent calls with the same email can both pass the check.
func (c *Cache) Create(ctx context.Context, req upstream.CreateUserRequest) (model.UserRecord, error) {
	if c.opts.StrictCreate {
		c.createMu.Lock()
		defer c.createMu.Unlock()
	}

	email, _ := req.Metadata["email"].(string)
	existing, err := c.FindByEmail(ctx, email)
	if err != nil {
		return model.UserRecord{}, err
	}
	if existing != nil {
		return model.UserRecord{}, apperror.DuplicateEmail(email)
	}

	user, err := c.up.CreateUser(ctx, req)
	if err != nil {
		return model.UserRecord{}, fmt.Errorf("directory: creating user %s: %w", req.UID, err)
	}
	if user.Email() == "" && email != "" {
		if user.Metadata == nil {
			user.Metadata = make(map[string]any)
		}
		user.Metadata["email"] = email
	}

	c.Append(user)
	c.logger.Debug("user appended to directory", slog.String("uid", user.UID))
	return user, nil
}
