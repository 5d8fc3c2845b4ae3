package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/upstream"
)

// fakePlatform is an in-memory chat platform implementing upstream.Gateway.
type fakePlatform struct {
	mu       sync.Mutex
	users    []model.UserRecord
	friends  map[string][]string
	messages []model.Message
	reads    []string

	// set to simulate an outage on every call
	err error
	// uids AddFriends reports as rejected
	rejectFriends map[string]bool

	lastListOpts upstream.ListUsersOptions
	lastMsgOpts  upstream.ListMessagesOptions
	creates      int
}

var _ upstream.Gateway = (*fakePlatform)(nil)

func newFakePlatform(users ...model.UserRecord) *fakePlatform {
	return &fakePlatform{
		users:         users,
		friends:       make(map[string][]string),
		rejectFriends: make(map[string]bool),
	}
}

func (f *fakePlatform) find(uid string) *model.UserRecord {
	for i := range f.users {
		if f.users[i].UID == uid {
			u := f.users[i]
			return &u
		}
	}
	return nil
}

func (f *fakePlatform) ListUsers(ctx context.Context, opts upstream.ListUsersOptions) ([]model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.UserRecord(nil), f.users...), nil
}

func (f *fakePlatform) CreateUser(ctx context.Context, req upstream.CreateUserRequest) (model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.UserRecord{}, f.err
	}
	if f.find(req.UID) != nil {
		return model.UserRecord{}, apperror.Conflict("user", req.UID)
	}
	f.creates++
	u := model.UserRecord{UID: req.UID, Name: req.Name, Metadata: req.Metadata}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakePlatform) GetUser(ctx context.Context, uid string) (*model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.find(uid), nil
}

func (f *fakePlatform) SendMessage(ctx context.Context, onBehalfOf string, req upstream.SendMessageRequest) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Message{}, f.err
	}
	msg := model.Message{
		ID:           json.Number(strconv.Itoa(len(f.messages) + 1)),
		Sender:       onBehalfOf,
		Receiver:     req.Receiver,
		ReceiverType: req.ReceiverType,
		Category:     req.Category,
		Type:         req.Type,
		Data:         req.Data,
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakePlatform) GetConversation(ctx context.Context, onBehalfOf, contactID string, opts upstream.ListMessagesOptions) (model.Page[model.Message], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMsgOpts = opts
	if f.err != nil {
		return model.Page[model.Message]{}, f.err
	}
	var items []model.Message
	for _, m := range f.messages {
		if (m.Sender == onBehalfOf && m.Receiver == contactID) || (m.Sender == contactID && m.Receiver == onBehalfOf) {
			items = append(items, m)
		}
	}
	return model.Page[model.Message]{Items: items}, nil
}

func (f *fakePlatform) MarkConversationRead(ctx context.Context, onBehalfOf, contactID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reads = append(f.reads, onBehalfOf+"/"+contactID+"/"+messageID)
	return nil
}

func (f *fakePlatform) ListFriends(ctx context.Context, uid string, opts upstream.ListUsersOptions) ([]model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastListOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	var out []model.UserRecord
	for _, id := range f.friends[uid] {
		if u := f.find(id); u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakePlatform) AddFriends(ctx context.Context, uid string, friendUIDs []string) (upstream.AddFriendsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return upstream.AddFriendsResult{}, f.err
	}
	res := upstream.AddFriendsResult{Accepted: make(map[string]upstream.FriendResult)}
	for _, id := range friendUIDs {
		if f.rejectFriends[id] || f.find(id) == nil {
			res.Accepted[id] = upstream.FriendResult{Success: false, Message: "rejected"}
			continue
		}
		f.friends[uid] = append(f.friends[uid], id)
		res.Accepted[id] = upstream.FriendResult{Success: true}
	}
	return res, nil
}

type pushed struct {
	to      string
	event   string
	payload any
}

// fakeNotifier records pushes and treats users in online as connected.
type fakeNotifier struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []pushed
}

func newFakeNotifier(online ...string) *fakeNotifier {
	n := &fakeNotifier{online: make(map[string]bool)}
	for _, u := range online {
		n.online[u] = true
	}
	return n
}

func (n *fakeNotifier) SendToUser(userID, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.sent = append(n.sent, pushed{userID, event, payload})
	return true
}

func (n *fakeNotifier) pushes() []pushed {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]pushed(nil), n.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userRecord(uid, name, email string) model.UserRecord {
	return model.UserRecord{UID: uid, Name: name, Metadata: map[string]any{"email": email}}
}
