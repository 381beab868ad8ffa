// Package token issues and verifies HMAC-signed JWT access tokens.
package token

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/account-keeper/internal/config"
	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/model"
)

// TypeBearer is the token type reported to clients.
const TypeBearer = "bearer"

// Manager signs and parses access tokens whose subject is a user ID.
type Manager struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	leeway time.Duration
	issuer string
	now    func() time.Time
}

// NewManager builds a manager from the JWT settings.
func NewManager(cfg config.JWTSettings) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("token: unsupported algorithm " + cfg.Algorithm)
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    cfg.AccessTokenTTL,
		leeway: cfg.Leeway,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// Issue creates a signed access token for userID.
func (m *Manager) Issue(userID uuid.UUID) (model.Tokens, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, errs.Wrap(err, errs.KindTokenIssue)
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Issuer:    m.issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return model.Tokens{}, errs.Wrap(err, errs.KindTokenIssue)
	}
	return model.Tokens{AccessToken: signed, TokenType: TypeBearer, ExpiresAt: exp}, nil
}

// Parse verifies raw and returns its subject. Expired tokens are errs.ErrTokenExpired;
// every other failure is errs.ErrTokenInvalid.
func (m *Manager) Parse(raw string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, errs.Wrap(err, errs.KindTokenExpired)
	case err != nil:
		return uuid.Nil, errs.Wrap(err, errs.KindTokenInvalid)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.New(errs.KindTokenInvalid).WithDetail("reason", "bad subject")
	}
	return id, nil
}
