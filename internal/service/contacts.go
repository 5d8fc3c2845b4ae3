package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/directory"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/push"
	"github.com/sakif/chat-gateway/internal/upstream"
)

// MaxContactsPerPage caps the perPage a caller may ask for.
const MaxContactsPerPage = upstream.DefaultPageSize

// Notifier pushes an event to a user's live connection and reports whether
// the user was online. *presence.Registry satisfies it.
type Notifier interface {
	SendToUser(userID, event string, payload any) bool
}

// FriendStore is the friends part of the chat platform.
type FriendStore interface {
	ListFriends(ctx context.Context, uid string, opts upstream.ListUsersOptions) ([]model.UserRecord, error)
	AddFriends(ctx context.Context, uid string, friendUIDs []string) (upstream.AddFriendsResult, error)
}

// UserSearcher is fuzzy search over the user directory.
type UserSearcher interface {
	Search(ctx context.Context, query string) ([]directory.Match, error)
}

type ContactService struct {
	friends  FriendStore
	users    UserLookup
	search   UserSearcher
	notifier Notifier
	logger   *slog.Logger
}

func NewContactService(
	friends FriendStore,
	users UserLookup,
	search UserSearcher,
	notifier Notifier,
	logger *slog.Logger,
) *ContactService {
	return &ContactService{
		friends:  friends,
		users:    users,
		search:   search,
		notifier: notifier,
		logger:   logger,
	}
}

// ContactQuery filters and pages a contact list. Zero values mean the first
// page of MaxContactsPerPage with no filter.
type ContactQuery struct {
	Search  string
	Page    int
	PerPage int
}

// List returns uid's contacts.
func (s *ContactService) List(ctx context.Context, uid string, q ContactQuery) ([]model.PublicUser, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > MaxContactsPerPage {
		q.PerPage = MaxContactsPerPage
	}

	friends, err := s.friends.ListFriends(ctx, uid, upstream.ListUsersOptions{
		SearchKey: strings.TrimSpace(q.Search),
		Page:      q.Page,
		PerPage:   q.PerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("service/contacts: listing contacts of %s: %w", uid, err)
	}
	return model.PublicUsers(friends), nil
}

// AddResult reports what the platform accepted and who was told live.
type AddResult struct {
	Results  map[string]upstream.FriendResult `json:"results"`
	Accepted []string                         `json:"accepted"`
	Notified []string                         `json:"notified"`
}

// Add makes each of uids a contact of uid.
//
// Every accepted uid that is online gets a "new-contact" event carrying the
// caller's public profile. Being offline is not an error.
func (s *ContactService) Add(ctx context.Context, uid string, uids []string) (*AddResult, error) {
	targets := cleanUIDs(uid, uids)
	if len(targets) == 0 {
		return nil, apperror.ValidationFailed("uids", "at least one other user id is required")
	}

	res, err := s.friends.AddFriends(ctx, uid, targets)
	if err != nil {
		return nil, fmt.Errorf("service/contacts: adding contacts for %s: %w", uid, err)
	}

	out := &AddResult{
		Results:  res.Accepted,
		Accepted: res.AcceptedUIDs(),
		Notified: []string{},
	}
	if out.Results == nil {
		out.Results = map[string]upstream.FriendResult{}
	}
	if len(out.Accepted) == 0 {
		return out, nil
	}

	self := s.profile(ctx, uid)
	for _, friend := range out.Accepted {
		if s.notifier.SendToUser(friend, push.EventNewContact, self) {
			out.Notified = append(out.Notified, friend)
			continue
		}
		s.logger.Debug("new contact is offline", slog.String("uid", uid), slog.String("contact", friend))
	}

	s.logger.Info("contacts added",
		slog.String("uid", uid),
		slog.Int("accepted", len(out.Accepted)),
		slog.Int("notified", len(out.Notified)),
	)
	return out, nil
}

// FindUsers fuzzy-searches the directory, leaving the caller out.
func (s *ContactService) FindUsers(ctx context.Context, uid, query string) ([]model.PublicUser, error) {
	matches, err := s.search.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("service/contacts: searching users: %w", err)
	}

	out := make([]model.PublicUser, 0, len(matches))
	for _, m := range matches {
		if m.User.UID == uid {
			continue
		}
		out = append(out, m.User.Public())
	}
	return out, nil
}

// profile is the caller's public profile for push payloads. A lookup
// failure degrades to the bare uid rather than failing an add that already
// happened upstream.
func (s *ContactService) profile(ctx context.Context, uid string) model.PublicUser {
	user, err := s.users.GetUser(ctx, uid)
	if err != nil || user == nil {
		if err != nil {
			s.logger.Warn("loading own profile for push failed",
				slog.String("uid", uid),
				slog.String("error", err.Error()),
			)
		}
		return model.PublicUser{UID: uid, Name: displayName(uid)}
	}
	return user.Public()
}

// cleanUIDs trims, dedups and drops empty entries and self, keeping order.
func cleanUIDs(self string, uids []string) []string {
	seen := make(map[string]bool, len(uids))
	out := make([]string, 0, len(uids))
	for _, u := range uids {
		u = strings.TrimSpace(u)
		if u == "" || u == self || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
