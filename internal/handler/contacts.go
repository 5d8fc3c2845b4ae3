package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/auth"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/service"
)

// Contacts is the part of service.ContactService the handlers use.
type Contacts interface {
	List(ctx context.Context, uid string, q service.ContactQuery) ([]model.PublicUser, error)
	Add(ctx context.Context, uid string, uids []string) (*service.AddResult, error)
	FindUsers(ctx context.Context, uid, query string) ([]model.PublicUser, error)
}

type ContactHandler struct {
	svc Contacts
}

func NewContactHandler(svc Contacts) *ContactHandler {
	return &ContactHandler{svc: svc}
}

// HandleList returns the caller's contacts.
//
// HTTP: GET /contacts?q=&page=&perPage=
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	contacts, err := h.svc.List(r.Context(), uid, service.ContactQuery{
		Search:  query.Get("q"),
		Page:    atoiOrZero(query.Get("page")),
		PerPage: atoiOrZero(query.Get("perPage")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Got %d contacts", len(contacts)),
		"contacts": contacts,
	})
}

// HandleAdd adds contacts and pushes "new-contact" to the ones online.
//
// HTTP: POST /contacts  {"uids": ["bob@example.com"]}
func (h *ContactHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var body struct {
		UIDs []string `json:"uids"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.UIDs == nil {
		writeError(w, apperror.ValidationFailed("uids", "missing uids"))
		return
	}

	res, err := h.svc.Add(r.Context(), uid, body.UIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Added %d contacts", len(res.Accepted)),
		"res":     res,
	})
}

// HandleFindUser fuzzy-searches the directory by name or email.
//
// HTTP: GET /contacts/find-user?q=
func (h *ContactHandler) HandleFindUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	users, err := h.svc.FindUsers(r.Context(), uid, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Got %d users", len(users)),
		"users":   users,
	})
}

// requireUID reads the caller from the context and writes a 401 when there
// is none. Routes using it sit behind RequireAuth, so that is a wiring bug.
func requireUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
	}
	return uid, ok
}

// atoiOrZero parses s, treating junk as "not given".
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
