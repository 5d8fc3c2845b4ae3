package model

import "encoding/json"

// ReceiverType selects between one-to-one and group delivery upstream.
type ReceiverType string

const (
	ReceiverUser  ReceiverType = "user"
	ReceiverGroup ReceiverType = "group"
)

// Message is a chat message as returned by the chat platform.
//
// The platform sends ids as numbers or numeric strings; json.Number accepts
// both.
type Message struct {
	ID             json.Number    `json:"id"`
	ConversationID string         `json:"conversationId,omitempty"`
	Sender         string         `json:"sender"`
	Receiver       string         `json:"receiver"`
	ReceiverType   ReceiverType   `json:"receiverType"`
	Category       string         `json:"category"`
	Type           string         `json:"type"`
	Data           map[string]any `json:"data,omitempty"`
	SentAt         int64          `json:"sentAt,omitempty"`
	ReadAt         int64          `json:"readAt,omitempty"`
}

// Text returns data.text, the body of a plain text message.
func (m Message) Text() string {
	text, _ := m.Data["text"].(string)
	return text
}

// Pagination mirrors the platform's meta.pagination block.
type Pagination struct {
	Total       int `json:"total"`
	Count       int `json:"count"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// Page is one page of results plus whatever pagination the platform sent.
type Page[T any] struct {
	Items      []T         `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}
