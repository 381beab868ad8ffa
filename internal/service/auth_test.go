package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/account-keeper/internal/errs"
)

const goodPassword = "Str0ng!pass"

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := NewAuthService(users, plainHasher{}, fakeIssuer{}, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	if _, err := s.Register(ctx, "", goodPassword); !errs.IsKind(err, errs.KindInvalidEmail) {
		t.Fatalf("want InvalidEmail on empty email, got %v", err)
	}
	if _, err := s.Register(ctx, "alice@example.com", "weak"); !errs.IsKind(err, errs.KindWeakPassword) {
		t.Fatalf("want WeakPassword, got %v", err)
	}

	res, err := s.Register(ctx, " Alice@Example.com ", goodPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Email != "alice@example.com" || !res.User.IsActive {
		t.Fatalf("bad user: %+v", res.User)
	}
	if res.User.HashedPassword != "hashed:"+goodPassword {
		t.Fatalf("password not hashed: %q", res.User.HashedPassword)
	}
	if res.Tokens.AccessToken != "tok-"+res.User.ID.String() || res.Tokens.TokenType != "bearer" {
		t.Fatalf("bad tokens: %+v", res.Tokens)
	}

	_, err = s.Register(ctx, "alice@example.com", goodPassword)
	if !errs.IsKind(err, errs.KindUserAlreadyExists) {
		t.Fatalf("want UserAlreadyExists on duplicate, got %v", err)
	}
	if ae, _ := errs.As(err); ae.Message() != "User with email alice@example.com already exists" {
		t.Fatalf("unexpected message %q", ae.Message())
	}
}

func TestAuth_Register_StoreReportsDuplicate(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	users.createErr = errs.New(errs.KindDuplicateEntity, "user")
	s := NewAuthService(users, plainHasher{}, fakeIssuer{}, nil)

	_, err := s.Register(context.Background(), "bob@example.com", goodPassword)
	if !errs.IsKind(err, errs.KindUserAlreadyExists) {
		t.Fatalf("want UserAlreadyExists, got %v", err)
	}
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("store error must stay in the chain")
	}
}

func TestAuth_Register_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	users := newFakeUsers()
	users.getByEmailErr = errs.New(errs.KindDatabaseConnection)
	s := NewAuthService(users, plainHasher{}, fakeIssuer{}, nil)
	if _, err := s.Register(ctx, "c@example.com", goodPassword); !errs.IsKind(err, errs.KindDatabaseConnection) {
		t.Fatalf("want lookup error propagated, got %v", err)
	}

	s = NewAuthService(newFakeUsers(), plainHasher{err: errors.New("bcrypt")}, fakeIssuer{}, nil)
	_, err := s.Register(ctx, "c@example.com", goodPassword)
	ae, ok := errs.As(err)
	if !ok || ae.Kind() != errs.KindPasswordHashing {
		t.Fatalf("want PasswordHashing on hashing failure, got %v", err)
	}
	if ae.Layer() != errs.LayerService {
		t.Fatalf("want service layer, got %s", ae.Layer())
	}

	s = NewAuthService(newFakeUsers(), plainHasher{}, fakeIssuer{err: errs.New(errs.KindTokenIssue)}, nil)
	if _, err := s.Register(ctx, "c@example.com", goodPassword); !errs.IsKind(err, errs.KindTokenIssue) {
		t.Fatalf("want TokenIssue, got %v", err)
	}
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := newFakeUsers()
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(users, plainHasher{}, fakeIssuer{}, lim)

	reg, err := s.Register(ctx, "alice@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	lim.allowErr = errs.New(errs.KindCacheUnavailable)
	if _, _, err := s.Login(ctx, "alice@example.com", goodPassword, "1.2.3.4"); !errs.IsKind(err, errs.KindCacheUnavailable) {
		t.Fatalf("want limiter error propagate, got %v", err)
	}
	lim.allowErr = nil

	lim.allowOK = false
	lim.retry = 90 * time.Second
	_, _, err = s.Login(ctx, "alice@example.com", goodPassword, "1.2.3.4")
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if ae, _ := errs.As(err); ae.Details()["retry_after_seconds"] != 90 {
		t.Fatalf("want retry_after_seconds=90, got %v", ae.Details())
	}
	lim.allowOK = true
	lim.retry = 0

	if _, _, err := s.Login(ctx, "nope@example.com", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}

	lim.failBlocked = true
	if _, _, err := s.Login(ctx, "alice@example.com", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, _, err := s.Login(ctx, "alice@example.com", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}
	if lim.failureCalls != 3 {
		t.Fatalf("want 3 recorded failures, got %d", lim.failureCalls)
	}

	tok, u, err := s.Login(ctx, "ALICE@example.com", goodPassword, "127.0.0.1:123")
	if err != nil {
		t.Fatalf("Login success: %v", err)
	}
	if tok.AccessToken == "" || u.ID != reg.User.ID {
		t.Fatalf("bad login result: %+v %+v", tok, u)
	}
	if lim.successCalls != 1 {
		t.Fatalf("expected Success() to be called once, got %d", lim.successCalls)
	}
}

func TestAuth_Login_InactiveAndStoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := newFakeUsers()
	s := NewAuthService(users, plainHasher{}, fakeIssuer{}, nil)
	us := NewUserService(users, plainHasher{})

	reg, err := s.Register(ctx, "dave@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	off := false
	if _, err := us.Update(ctx, reg.User.ID, reg.User.Version, UserPatch{IsActive: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, _, err := s.Login(ctx, "dave@example.com", goodPassword, ""); !errs.IsKind(err, errs.KindAccountInactive) {
		t.Fatalf("want AccountInactive, got %v", err)
	}
	if _, _, err := s.Login(ctx, "dave@example.com", "wrong", ""); !errs.IsKind(err, errs.KindInvalidCredentials) {
		t.Fatalf("inactive state must not leak without the password, got %v", err)
	}

	users.getByEmailErr = errs.New(errs.KindDatabaseQuery)
	if _, _, err := s.Login(ctx, "dave@example.com", goodPassword, ""); !errs.IsKind(err, errs.KindDatabaseQuery) {
		t.Fatalf("want store error surfaced, got %v", err)
	}
}

func TestAuth_Login_DeletedUserCannotLogIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := newFakeUsers()
	s := NewAuthService(users, plainHasher{}, fakeIssuer{}, nil)

	reg, err := s.Register(ctx, "erin@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := users.Delete(ctx, reg.User.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Login(ctx, "erin@example.com", goodPassword, ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for deleted user, got %v", err)
	}
	if _, err := s.Register(ctx, "erin@example.com", goodPassword); err != nil {
		t.Fatalf("email of a deleted user must be reusable: %v", err)
	}
}

func TestAuth_Login_LimiterResetFailureIsLogged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	lim := &fakeLimiter{allowOK: true, successErr: errs.New(errs.KindCacheUnavailable)}
	s := NewAuthService(newFakeUsers(), plainHasher{}, fakeIssuer{}, lim, WithLogger(zap.New(core)))

	if _, err := s.Register(ctx, "erin@example.com", goodPassword); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := s.Login(ctx, "erin@example.com", goodPassword, "10.0.0.1"); err != nil {
		t.Fatalf("want login to succeed despite limiter reset failure, got %v", err)
	}

	entries := logs.FilterMessage("limiter reset failed").All()
	if len(entries) != 1 {
		t.Fatalf("want one limiter reset log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["kind"] != "CacheUnavailable" {
		t.Fatalf("want kind CacheUnavailable, got %v", fields["kind"])
	}
	if fields["email"] != "eri***@example.com" {
		t.Fatalf("want masked email, got %v", fields["email"])
	}
}
