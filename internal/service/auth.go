// Package service holds the gateway's use cases. Handlers call services;
// services call the directory, the chat platform and the presence registry
// through the narrow interfaces declared here, so tests can swap in fakes.
//
//	handler (HTTP) → service → directory.Cache   (email dedup, search)
//	                         → upstream.Gateway  (users, friends, messages)
//	                         → presence.Registry (live push)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/sakif/chat-gateway/internal/apperror"
	"github.com/sakif/chat-gateway/internal/auth"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/upstream"
)

// UserCreator creates users with email dedup. *directory.Cache satisfies it.
type UserCreator interface {
	Create(ctx context.Context, req upstream.CreateUserRequest) (model.UserRecord, error)
}

// UserLookup reads one user from the chat platform. GetUser returns
// (nil, nil) for an unknown uid.
type UserLookup interface {
	GetUser(ctx context.Context, uid string) (*model.UserRecord, error)
}

// AuthService registers and logs in users. Accounts live on the chat
// platform; the password hash is kept in the user's private metadata.
type AuthService struct {
	creator   UserCreator
	users     UserLookup
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	creator UserCreator,
	users UserLookup,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		creator:   creator,
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the public user with its session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User      model.PublicUser
	Token     string
	ExpiresAt time.Time
}

// Register creates an account whose uid is the email.
//
// FLOW:
//  1. Validate email and password.
//  2. Hash the password.
//  3. Create the user through the directory, which rejects an email that is
//     already cached with apperror.ErrConflict.
//  4. Issue a session token.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", err.Error())
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user, err := s.creator.Create(ctx, upstream.CreateUserRequest{
		UID:  email,
		Name: displayName(email),
		Metadata: map[string]any{
			"email": email,
			model.PrivateMetadataKey: map[string]any{
				"password": hash,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: registering %s: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("uid", user.UID))
	return s.issue(user)
}

// Login checks email and password against the platform's copy of the user.
// An unknown email and a wrong password both yield the same
// apperror.ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetUser(ctx, email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", email, err)
	}
	if user == nil || user.PasswordHash() == "" {
		s.logger.Debug("login for unknown user", slog.String("email", email))
		return nil, apperror.Unauthenticated("invalid credentials")
	}

	if err := s.passwords.Verify(user.PasswordHash(), password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("stored password hash unusable",
				slog.String("uid", user.UID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthenticated("invalid credentials")
	}

	s.logger.Info("user logged in", slog.String("uid", user.UID))
	return s.issue(*user)
}

// Me returns the public profile of uid.
func (s *AuthService) Me(ctx context.Context, uid string) (model.PublicUser, error) {
	if uid == "" {
		return model.PublicUser{}, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("service/auth: fetching user %s: %w", uid, err)
	}
	if user == nil {
		return model.PublicUser{}, apperror.NotFound("user", uid)
	}
	return user.Public(), nil
}

// ValidateToken returns the identity a session token was issued for.
func (s *AuthService) ValidateToken(token string) (auth.Identity, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return auth.Identity{}, apperror.Unauthenticated(err.Error())
	}
	return id, nil
}

func (s *AuthService) issue(user model.UserRecord) (*AuthResult, error) {
	id := auth.Identity{UID: user.UID, Email: user.Email()}
	token, err := s.tokens.Generate(id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.UID, err)
	}
	return &AuthResult{
		User:      user.Public(),
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}, nil
}

// normalizeEmail trims email and checks it is a bare address. Case is kept:
// the address becomes the uid verbatim.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is not a valid address")
	}
	return email, nil
}

// displayName is the local part of email.
func displayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}
