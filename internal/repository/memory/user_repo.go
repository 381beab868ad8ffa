// Package memory contains in-process implementations of repository interfaces.
// They are used by tests and by the server when no database DSN is configured.
package memory

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/model"
)

const entityUser = "user"

// UserRepo is a mutex-guarded user store. Users are cloned on the way in and out,
// so callers never share state with the store.
type UserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

// NewUserRepo returns an empty store.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepo) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindOperationTimeout)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return nil, errs.New(errs.KindDuplicateEntity, entityUser)
	}
	if !u.IsDeleted() && r.emailTaken(u.Email, u.ID) {
		return nil, errs.New(errs.KindDuplicateEntity, entityUser)
	}
	r.users[u.ID] = u.Clone()
	return u.Clone(), nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindOperationTimeout)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound(id)
	}
	return u.Clone(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindOperationTimeout)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if !u.IsDeleted() && u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, errs.New(errs.KindEntityNotFound, entityUser, "with this email")
}

// Update compares and swaps under the store lock: of any number of writers holding
// the same observed version, exactly one succeeds.
func (r *UserRepo) Update(ctx context.Context, u *model.User) (*model.User, error) {
	if u.ID == uuid.Nil {
		return nil, errs.New(errs.KindMissingIdentifier, entityUser)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindOperationTimeout)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		return nil, notFound(u.ID)
	}
	if err := u.VerifyVersion(stored.Version); err != nil {
		ae, _ := errs.As(err)
		return nil, ae.WithDetail("entity", entityUser)
	}
	if !u.IsDeleted() && r.emailTaken(u.Email, u.ID) {
		return nil, errs.New(errs.KindDuplicateEntity, entityUser)
	}

	next := u.Clone()
	next.CreatedAt = stored.CreatedAt
	next.UpdateVersion()
	r.users[u.ID] = next
	return next.Clone(), nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, errs.KindOperationTimeout)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.IsDeleted() {
		return false, nil
	}
	next := u.Clone()
	next.UpdateVersion()
	next.SoftDelete()
	r.users[id] = next
	return true, nil
}

// emailTaken reports whether an active user other than self uses email.
// The caller holds r.mu.
func (r *UserRepo) emailTaken(email string, self uuid.UUID) bool {
	for id, u := range r.users {
		if id != self && !u.IsDeleted() && u.Email == email {
			return true
		}
	}
	return false
}

func notFound(id uuid.UUID) error {
	return errs.New(errs.KindEntityNotFound, entityUser, id.String()).WithDetail("id", id.String())
}
