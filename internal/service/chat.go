package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/push"
	"github.com/sakif/chat-gateway/internal/upstream"
)

const (
	// DefaultConversationLimit is used when the caller asks for no limit.
	DefaultConversationLimit = 50
	MaxConversationLimit     = 100
)

// MessageStore is the messaging part of the chat platform.
type MessageStore interface {
	SendMessage(ctx context.Context, onBehalfOf string, req upstream.SendMessageRequest) (model.Message, error)
	GetConversation(ctx context.Context, onBehalfOf, contactID string, opts upstream.ListMessagesOptions) (model.Page[model.Message], error)
	MarkConversationRead(ctx context.Context, onBehalfOf, contactID, messageID string) error
}

type ChatService struct {
	messages MessageStore
	notifier Notifier
	logger   *slog.Logger
}

func NewChatService(messages MessageStore, notifier Notifier, logger *slog.Logger) *ChatService {
	return &ChatService{messages: messages, notifier: notifier, logger: logger}
}

// SendResult is the stored message and whether the receiver got it live.
type SendResult struct {
	Message   model.Message `json:"message"`
	Delivered bool          `json:"delivered"`
}

// Send stores a text message from one user to another on the platform, then
// pushes it as "text-message" to the receiver if they are online. The send
// succeeds whether or not the receiver is online.
func (s *ChatService) Send(ctx context.Context, from, to, text string) (*SendResult, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, apperror.ValidationFailed("uid", "receiver uid is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperror.ValidationFailed("message", "message must not be empty")
	}

	msg, err := s.messages.SendMessage(ctx, from, upstream.TextMessage(to, text))
	if err != nil {
		return nil, fmt.Errorf("service/chat: sending message to %s: %w", to, err)
	}

	delivered := s.notifier.SendToUser(to, push.EventTextMessage, msg)
	s.logger.Debug("message sent",
		slog.String("from", from),
		slog.String("to", to),
		slog.Bool("delivered", delivered),
	)
	return &SendResult{Message: msg, Delivered: delivered}, nil
}

// Conversation returns the latest messages between uid and contactID.
func (s *ChatService) Conversation(ctx context.Context, uid, contactID string, limit int) (model.Page[model.Message], error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return model.Page[model.Message]{}, apperror.ValidationFailed("uid", "contact uid is required")
	}
	if limit < 1 {
		limit = DefaultConversationLimit
	}
	if limit > MaxConversationLimit {
		limit = MaxConversationLimit
	}

	page, err := s.messages.GetConversation(ctx, uid, contactID, upstream.ListMessagesOptions{Limit: limit})
	if err != nil {
		return model.Page[model.Message]{}, fmt.Errorf("service/chat: loading conversation %s/%s: %w", uid, contactID, err)
	}
	if page.Items == nil {
		page.Items = []model.Message{}
	}
	return page, nil
}

// MarkRead marks the conversation with contactID as read up to messageID.
func (s *ChatService) MarkRead(ctx context.Context, uid, contactID, messageID string) error {
	contactID = strings.TrimSpace(contactID)
	messageID = strings.TrimSpace(messageID)
	if contactID == "" {
		return apperror.ValidationFailed("uid", "contact uid is required")
	}
	if messageID == "" {
		return apperror.ValidationFailed("messageId", "message id is required")
	}

	if err := s.messages.MarkConversationRead(ctx, uid, contactID, messageID); err != nil {
		return fmt.Errorf("service/chat: marking %s/%s read: %w", uid, contactID, err)
	}
	return nil
}
