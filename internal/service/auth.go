// Package service contains application services for registration, login and
// account maintenance.
package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/limiter"
	"github.com/and161185/account-keeper/internal/logger"
	"github.com/and161185/account-keeper/internal/model"
	"github.com/and161185/account-keeper/internal/repository"
	"github.com/and161185/account-keeper/internal/validate"
)

// PasswordHasher hashes and checks passwords. Implemented by *crypto.Hasher.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool
}

// TokenIssuer issues access tokens. Implemented by *token.Manager.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (model.Tokens, error)
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	User   *model.User
	Tokens model.Tokens
}

// AuthService defines registration and login.
type AuthService interface {
	// Register validates the credentials, creates an active user and issues a token.
	Register(ctx context.Context, email, password string) (RegisterResult, error)
	// Login applies rate limiting by (email, ip) and authenticates the user.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.User, error)
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	lim    limiter.Limiter
	log    *zap.Logger
}

// AuthOption customizes AuthServiceImpl.
type AuthOption func(*AuthServiceImpl)

// WithLogger sets the logger for failures that do not fail the request.
func WithLogger(log *zap.Logger) AuthOption {
	return func(s *AuthServiceImpl) {
		if log != nil {
			s.log = log
		}
	}
}

// NewAuthService constructs AuthService with required dependencies. A nil limiter
// disables rate limiting.
func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, lim limiter.Limiter, opts ...AuthOption) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	s := &AuthServiceImpl{users: users, hasher: hasher, tokens: tokens, lim: lim, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a new user. An email held by an active user is rejected, also when
// the conflict is only detected by the store.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	email, err := validate.Email(email)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := validate.Password(password); err != nil {
		return RegisterResult{}, err
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return RegisterResult{}, errs.New(errs.KindUserAlreadyExists, email)
	case !errs.IsKind(err, errs.KindEntityNotFound):
		return RegisterResult{}, err
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return RegisterResult{}, errs.Wrap(err, errs.KindPasswordHashing)
	}
	u, err := model.NewUser(email, hash)
	if err != nil {
		return RegisterResult{}, err
	}
	created, err := s.users.Create(ctx, u)
	if errs.IsKind(err, errs.KindDuplicateEntity) {
		return RegisterResult{}, errs.Wrap(err, errs.KindUserAlreadyExists, email)
	}
	if err != nil {
		return RegisterResult{}, err
	}

	tok, err := s.tokens.Issue(created.ID)
	if err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{User: created, Tokens: tok}, nil
}

// Login authenticates with rate limiting by (email, ip). Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.User, error) {
	email = validate.NormalizeEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, retry, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if !allowed {
		return model.Tokens{}, nil, rateLimited(retry)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errs.IsKind(err, errs.KindEntityNotFound) {
		return model.Tokens{}, nil, err
	}
	if err != nil || !s.hasher.VerifyPassword(password, u.HashedPassword) {
		blocked, retry, ferr := s.lim.Failure(ctx, email, ipHash)
		if ferr != nil {
			return model.Tokens{}, nil, ferr
		}
		if blocked {
			return model.Tokens{}, nil, rateLimited(retry)
		}
		return model.Tokens{}, nil, errs.New(errs.KindInvalidCredentials)
	}
	if !u.IsActive {
		return model.Tokens{}, nil, errs.New(errs.KindAccountInactive)
	}

	// A stale counter only delays a later lockout, so the login still succeeds.
	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		logger.Error(s.log, "limiter reset failed", err,
			zap.String("email", logger.MaskEmail(email)),
			zap.String("user_id", u.ID.String()))
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tok, u, nil
}

func rateLimited(retry time.Duration) error {
	e := errs.New(errs.KindTooManyAttempts)
	if retry > 0 {
		e = e.WithDetail("retry_after_seconds", int(retry.Round(time.Second)/time.Second))
	}
	return e
}
