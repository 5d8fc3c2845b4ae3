// Package upstream talks to the hosted chat platform (CometChat REST v3).
//
// The platform owns every user, friendship and message. This package only
// translates calls into HTTP requests and maps failures onto apperror kinds:
//
//	network error / timeout / 5xx / 429  → apperror.ErrUnavailable
//	"already exists" rejections          → apperror.ErrConflict
//	other 4xx                            → apperror.ErrValidation
//	404                                  → apperror.ErrNotFound
package upstream

import (
	"context"
	"sort"

	"github.com/sakif/chat-gateway/internal/model"
)

// DefaultPageSize is large enough to be "effectively all users" for the
// directory; nothing pages beyond it.
const DefaultPageSize = 1000

// Gateway is everything the rest of the app needs from the chat platform.
type Gateway interface {
	ListUsers(ctx context.Context, opts ListUsersOptions) ([]model.UserRecord, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (model.UserRecord, error)
	// GetUser returns (nil, nil) when the platform has no such user.
	GetUser(ctx context.Context, uid string) (*model.UserRecord, error)

	SendMessage(ctx context.Context, onBehalfOf string, req SendMessageRequest) (model.Message, error)
	GetConversation(ctx context.Context, onBehalfOf, contactID string, opts ListMessagesOptions) (model.Page[model.Message], error)
	MarkConversationRead(ctx context.Context, onBehalfOf, contactID, messageID string) error

	ListFriends(ctx context.Context, uid string, opts ListUsersOptions) ([]model.UserRecord, error)
	AddFriends(ctx context.Context, uid string, friendUIDs []string) (AddFriendsResult, error)
}

// ListUsersOptions are the query parameters of GET /users and
// GET /users/{uid}/friends.
type ListUsersOptions struct {
	SearchKey string
	Page      int
	PerPage   int
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	UID      string         `json:"uid"`
	Name     string         `json:"name"`
	Avatar   string         `json:"avatar,omitempty"`
	Link     string         `json:"link,omitempty"`
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	Receiver     string             `json:"receiver"`
	ReceiverType model.ReceiverType `json:"receiverType"`
	Category     string             `json:"category"`
	Type         string             `json:"type"`
	Data         map[string]any     `json:"data"`
}

// TextMessage builds a one-to-one text message request.
func TextMessage(receiver, text string) SendMessageRequest {
	return SendMessageRequest{
		Receiver:     receiver,
		ReceiverType: model.ReceiverUser,
		Category:     "message",
		Type:         "text",
		Data:         map[string]any{"text": text},
	}
}

// ListMessagesOptions are the query parameters of GET /users/{uid}/messages.
type ListMessagesOptions struct {
	Limit int
}

// FriendResult is the per-uid outcome of an add-friends call.
type FriendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AddFriendsResult maps each requested uid to its outcome.
type AddFriendsResult struct {
	Accepted map[string]FriendResult `json:"accepted"`
}

// AcceptedUIDs lists the uids the platform actually added, sorted.
func (r AddFriendsResult) AcceptedUIDs() []string {
	out := make([]string, 0, len(r.Accepted))
	for uid, res := range r.Accepted {
		if res.Success {
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out
}
