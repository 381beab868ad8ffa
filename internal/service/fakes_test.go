package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/account-keeper/internal/limiter"
	"github.com/and161185/account-keeper/internal/model"
	"github.com/and161185/account-keeper/internal/repository"
	"github.com/and161185/account-keeper/internal/repository/memory"
)

// fakeUsers is the in-memory store with injectable failures.
type fakeUsers struct {
	*memory.UserRepo

	createErr     error
	getByEmailErr error
	updateErr     error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{UserRepo: memory.NewUserRepo()} }

func (f *fakeUsers) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.UserRepo.Create(ctx, u)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	return f.UserRepo.GetByEmail(ctx, email)
}

func (f *fakeUsers) Update(ctx context.Context, u *model.User) (*model.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.UserRepo.Update(ctx, u)
}

type plainHasher struct{ err error }

func (h plainHasher) HashPassword(p string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + p, nil
}

func (plainHasher) VerifyPassword(p, hash string) bool { return hash == "hashed:"+p }

type fakeIssuer struct{ err error }

func (f fakeIssuer) Issue(id uuid.UUID) (model.Tokens, error) {
	if f.err != nil {
		return model.Tokens{}, f.err
	}
	return model.Tokens{AccessToken: "tok-" + id.String(), TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error
	retry    time.Duration

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, l.retry, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, l.retry, l.failErr
}
