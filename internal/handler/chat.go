package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/service"
)

// Chat is the part of service.ChatService the handlers use.
type Chat interface {
	Send(ctx context.Context, from, to, text string) (*service.SendResult, error)
	Conversation(ctx context.Context, uid, contactID string, limit int) (model.Page[model.Message], error)
	MarkRead(ctx context.Context, uid, contactID, messageID string) error
}

type ChatHandler struct {
	svc Chat
}

func NewChatHandler(svc Chat) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// HandleSend sends a text message to {uid}.
//
// HTTP: POST /chat/user/{uid}  {"message": "hi"}
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	to := r.PathValue("uid")
	res, err := h.svc.Send(r.Context(), uid, to, body.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("message is sent to %s", to),
		"res":       res.Message,
		"delivered": res.Delivered,
	})
}

// HandleConversation returns the latest messages with {uid}.
//
// HTTP: GET /chat/user/{uid}?limit=
func (h *ChatHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	contact := r.PathValue("uid")
	page, err := h.svc.Conversation(r.Context(), uid, contact, atoiOrZero(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("conversation is loaded with %s", contact),
		"res":        page.Items,
		"pagination": page.Pagination,
	})
}

// HandleMarkRead marks the conversation with {uid} read up to a message.
//
// HTTP: POST /chat/user/{uid}/read  {"messageId": "42"}
func (h *ChatHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var body struct {
		MessageID string `json:"messageId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.MarkRead(r.Context(), uid, r.PathValue("uid"), body.MessageID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "conversation marked read"})
}
