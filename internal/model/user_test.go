package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUserRecord_MetadataAccessors(t *testing.T) {
	tests := []struct {
		name      string
		metadata  map[string]any
		wantEmail string
		wantHash  string
	}{
		{name: "nil metadata"},
		{
			name:      "email and private hash",
			metadata:  map[string]any{"email": "a@x.com", PrivateMetadataKey: map[string]any{"password": "$2a$10$abc"}},
			wantEmail: "a@x.com",
			wantHash:  "$2a$10$abc",
		},
		{
			name:     "wrong types are ignored",
			metadata: map[string]any{"email": 42, PrivateMetadataKey: "not-a-map"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := UserRecord{UID: "u", Metadata: tt.metadata}
			if got := u.Email(); got != tt.wantEmail {
				t.Errorf("Email() = %q, want %q", got, tt.wantEmail)
			}
			if got := u.PasswordHash(); got != tt.wantHash {
				t.Errorf("PasswordHash() = %q, want %q", got, tt.wantHash)
			}
		})
	}
}

func TestPublic_DropsMetadata(t *testing.T) {
	u := UserRecord{
		UID:      "a@x.com",
		Name:     "a",
		Metadata: map[string]any{"email": "a@x.com", PrivateMetadataKey: map[string]any{"password": "secret-hash"}},
	}

	b, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "secret-hash") || strings.Contains(string(b), "metadata") {
		t.Errorf("public user leaks metadata: %s", b)
	}
	if u.Public().Email != "a@x.com" {
		t.Errorf("Email = %q, want lifted from metadata", u.Public().Email)
	}
}

func TestPublicUsers_NeverNil(t *testing.T) {
	got := PublicUsers(nil)
	if got == nil {
		t.Fatal("PublicUsers(nil) = nil, want empty slice")
	}

	b, _ := json.Marshal(got)
	if string(b) != "[]" {
		t.Errorf("json = %s, want []", b)
	}
}

func TestMessage_Text(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"id":17,"sender":"a","receiver":"b","data":{"text":"hi"}}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ID.String() != "17" {
		t.Errorf("ID = %q, want 17", m.ID)
	}
	if m.Text() != "hi" {
		t.Errorf("Text() = %q, want hi", m.Text())
	}
	if (Message{}).Text() != "" {
		t.Error("empty message should have no text")
	}
}
