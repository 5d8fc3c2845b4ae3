package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/model"
)

// Config holds what the client needs to reach one CometChat app.
type Config struct {
	AppID  string
	Region string
	APIKey string
	// BaseURL overrides the URL derived from AppID and Region (tests, proxies).
	BaseURL string
	// Timeout bounds every call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout matches the platform SDK default.
const DefaultTimeout = 10 * time.Second

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.api-%s.cometchat.io/v3", c.AppID, c.Region)
}

// Client implements Gateway over the platform's REST API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *slog.Logger
	metrics *clientMetrics
}

var _ Gateway = (*Client)(nil)

// NewClient validates cfg and builds a Client. reg may be nil, in which case
// metrics are collected but not exported.
func NewClient(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("upstream: API key is required")
	}
	if cfg.BaseURL == "" && (cfg.AppID == "" || cfg.Region == "") {
		return nil, errors.New("upstream: app ID and region are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.baseURL(),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		logger:  logger,
		metrics: newClientMetrics(reg),
	}, nil
}

// envelope is the platform's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  *struct {
		Pagination *model.Pagination `json:"pagination"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call describes one HTTP round trip.
type call struct {
	op         string
	method     string
	path       string
	query      url.Values
	onBehalfOf string
	body       any
}

// do performs req and decodes the envelope's data into out (when out != nil).
func (c *Client) do(ctx context.Context, req call, out any) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	env, err := c.roundTrip(ctx, req, out)
	c.metrics.observe(req.op, err, time.Since(start))
	if err != nil {
		c.logger.Warn("upstream call failed",
			slog.String("op", req.op),
			slog.String("error", err.Error()),
		)
	}
	return env, err
}

func (c *Client) roundTrip(ctx context.Context, req call, out any) (*envelope, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("upstream: encoding %s body: %w", req.op, err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: building %s request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.onBehalfOf != "" {
		httpReq.Header.Set("onBehalfOf", req.onBehalfOf)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.Unavailable(req.op, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return nil, statusError(req.op, resp.StatusCode, &envelope{})
		}
		return nil, apperror.Unavailable(req.op, fmt.Errorf("decoding response: %w", err))
	}

	if resp.StatusCode >= 300 {
		return nil, statusError(req.op, resp.StatusCode, &env)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, apperror.Unavailable(req.op, fmt.Errorf("decoding data: %w", err))
		}
	}
	return &env, nil
}

// statusError maps a non-2xx response onto an apperror kind.
func statusError(op string, status int, env *envelope) error {
	code, msg := "", http.StatusText(status)
	if env.Error != nil {
		code = env.Error.Code
		if env.Error.Message != "" {
			msg = env.Error.Message
		}
	}
	cause := fmt.Errorf("status %d %s: %s", status, code, msg)

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return apperror.Unavailable(op, cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Our API key was rejected; nothing the end user can fix.
		return apperror.Unavailable(op, cause)
	case status == http.StatusNotFound:
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: msg, Cause: cause}
	case status == http.StatusConflict || strings.Contains(code, "ALREADY_EXISTS"):
		return &apperror.AppError{Err: apperror.ErrConflict, Message: msg, Cause: cause}
	default:
		return &apperror.AppError{Err: apperror.ErrValidation, Message: msg, Cause: cause}
	}
}

func userPath(uid string, rest ...string) string {
	p := "/users/" + url.PathEscape(uid)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (o ListUsersOptions) values() url.Values {
	q := url.Values{}
	if o.SearchKey != "" {
		q.Set("searchKey", o.SearchKey)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(o.PerPage))
	}
	return q
}

// ListUsers fetches one page of users. The directory calls it once with
// PerPage = DefaultPageSize.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) ([]model.UserRecord, error) {
	var users []model.UserRecord
	_, err := c.do(ctx, call{
		op:     "list users",
		method: http.MethodGet,
		path:   "/users",
		query:  opts.values(),
	}, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (model.UserRecord, error) {
	var user model.UserRecord
	_, err := c.do(ctx, call{
		op:     "create user",
		method: http.MethodPost,
		path:   "/users",
		body:   req,
	}, &user)
	if err != nil {
		return model.UserRecord{}, err
	}
	return user, nil
}

func (c *Client) GetUser(ctx context.Context, uid string) (*model.UserRecord, error) {
	var user model.UserRecord
	_, err := c.do(ctx, call{
		op:     "get user",
		method: http.MethodGet,
		path:   userPath(uid),
	}, &user)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SendMessage(ctx context.Context, onBehalfOf string, req SendMessageRequest) (model.Message, error) {
	var msg model.Message
	_, err := c.do(ctx, call{
		op:         "send message",
		method:     http.MethodPost,
		path:       "/messages",
		onBehalfOf: onBehalfOf,
		body:       req,
	}, &msg)
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// GetConversation lists the messages exchanged with contactID, as seen by
// onBehalfOf.
func (c *Client) GetConversation(ctx context.Context, onBehalfOf, contactID string, opts ListMessagesOptions) (model.Page[model.Message], error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	var msgs []model.Message
	env, err := c.do(ctx, call{
		op:         "get conversation",
		method:     http.MethodGet,
		path:       userPath(contactID, "messages"),
		query:      q,
		onBehalfOf: onBehalfOf,
	}, &msgs)
	if err != nil {
		return model.Page[model.Message]{}, err
	}

	page := model.Page[model.Message]{Items: msgs}
	if page.Items == nil {
		page.Items = []model.Message{}
	}
	if env.Meta != nil {
		page.Pagination = env.Meta.Pagination
	}
	return page, nil
}

func (c *Client) MarkConversationRead(ctx context.Context, onBehalfOf, contactID, messageID string) error {
	_, err := c.do(ctx, call{
		op:         "mark conversation read",
		method:     http.MethodPost,
		path:       userPath(contactID, "conversation", "read"),
		onBehalfOf: onBehalfOf,
		body:       map[string]string{"messageId": messageID},
	}, nil)
	return err
}

func (c *Client) ListFriends(ctx context.Context, uid string, opts ListUsersOptions) ([]model.UserRecord, error) {
	var users []model.UserRecord
	_, err := c.do(ctx, call{
		op:     "list friends",
		method: http.MethodGet,
		path:   userPath(uid, "friends"),
		query:  opts.values(),
	}, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) AddFriends(ctx context.Context, uid string, friendUIDs []string) (AddFriendsResult, error) {
	var res AddFriendsResult
	_, err := c.do(ctx, call{
		op:     "add friends",
		method: http.MethodPost,
		path:   userPath(uid, "friends"),
		body:   map[string][]string{"accepted": friendUIDs},
	}, &res)
	if err != nil {
		return AddFriendsResult{}, err
	}
	return res, nil
}
