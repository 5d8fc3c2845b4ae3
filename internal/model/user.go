// Package model defines the data structures used throughout the application.
package model

// PrivateMetadataKey is the metadata key the chat platform hides from other
// users. Password hashes live under it.
const PrivateMetadataKey = "@private"

// UserRecord is a user as the chat platform stores it.
//
// UID is assigned by the caller at creation and never changes. Email is not a
// first-class field upstream: it lives in Metadata["email"], and nothing
// upstream enforces its uniqueness.
type UserRecord struct {
	UID           string         `json:"uid"`
	Name          string         `json:"name"`
	Avatar        string         `json:"avatar,omitempty"`
	Link          string         `json:"link,omitempty"`
	Role          string         `json:"role,omitempty"`
	Status        string         `json:"status,omitempty"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	LastActiveAt  int64          `json:"lastActiveAt,omitempty"`
	CreatedAt     int64          `json:"createdAt,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
}

// Email returns the metadata email, or "" when it is missing or not a string.
func (u UserRecord) Email() string {
	if u.Metadata == nil {
		return ""
	}
	email, _ := u.Metadata["email"].(string)
	return email
}

// PasswordHash returns the bcrypt hash stored in private metadata.
func (u UserRecord) PasswordHash() string {
	private, ok := u.Metadata[PrivateMetadataKey].(map[string]any)
	if !ok {
		return ""
	}
	hash, _ := private["password"].(string)
	return hash
}

// PublicUser is the shape returned to browsers: the email is lifted out of
// metadata and the metadata bag itself is dropped.
type PublicUser struct {
	UID           string   `json:"uid"`
	Name          string   `json:"name"`
	Email         string   `json:"email,omitempty"`
	Avatar        string   `json:"avatar,omitempty"`
	Link          string   `json:"link,omitempty"`
	Role          string   `json:"role,omitempty"`
	Status        string   `json:"status,omitempty"`
	StatusMessage string   `json:"statusMessage,omitempty"`
	LastActiveAt  int64    `json:"lastActiveAt,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

func (u UserRecord) Public() PublicUser {
	return PublicUser{
		UID:           u.UID,
		Name:          u.Name,
		Email:         u.Email(),
		Avatar:        u.Avatar,
		Link:          u.Link,
		Role:          u.Role,
		Status:        u.Status,
		StatusMessage: u.StatusMessage,
		LastActiveAt:  u.LastActiveAt,
		Tags:          u.Tags,
	}
}

// PublicUsers maps Public over a slice, never returning nil.
func PublicUsers(users []UserRecord) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}
