// Package convert defines the JSON wire messages shared by the HTTP and gRPC
// transports and converts them to and from domain values.
package convert

import (
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/model"
	"github.com/and161185/account-keeper/internal/service"
)

// --- requests (client -> server) ---

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest carries the version the client last saw and the fields to change.
type UpdateUserRequest struct {
	Version  string  `json:"version"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// VersionRequest is used by delete and restore. An empty version on delete means
// "delete whatever is stored".
type VersionRequest struct {
	Version string `json:"version,omitempty"`
}

// Empty is the message of calls without payload.
type Empty struct{}

// --- responses (server -> client) ---

type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	Version   string     `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthResponse answers register and login.
type AuthResponse struct {
	User  UserResponse  `json:"user"`
	Token TokenResponse `json:"token"`
}

// ErrorResponse is the body of every failed HTTP call.
type ErrorResponse struct {
	Error errs.Representation `json:"error"`
}

// ToUser converts a domain user. The password hash never leaves the server.
func ToUser(m *model.User) UserResponse {
	return UserResponse{
		ID:        m.ID.String(),
		Email:     m.Email,
		IsActive:  m.IsActive,
		Version:   m.Version.String(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
}

func ToToken(t model.Tokens) TokenResponse {
	return TokenResponse{AccessToken: t.AccessToken, TokenType: t.TokenType, ExpiresAt: t.ExpiresAt}
}

func ToAuth(m *model.User, t model.Tokens) AuthResponse {
	return AuthResponse{User: ToUser(m), Token: ToToken(t)}
}

// ParseVersion parses an optional version token. Empty input is uuid.Nil.
func ParseVersion(s string) (u.UUID, error) {
	if s == "" {
		return u.Nil, nil
	}
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, errs.Wrap(err, errs.KindInvalidRequest, "version must be a UUID").
			WithDetail("field", "version")
	}
	return id, nil
}

// Patch converts the request into a service patch and the observed version.
func (r UpdateUserRequest) Patch() (u.UUID, service.UserPatch, error) {
	ver, err := ParseVersion(r.Version)
	if err != nil {
		return u.Nil, service.UserPatch{}, err
	}
	return ver, service.UserPatch{Email: r.Email, Password: r.Password, IsActive: r.IsActive}, nil
}
