package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/model"
	"github.com/and161185/account-keeper/internal/repository"
	"github.com/and161185/account-keeper/internal/validate"
)

// UserPatch lists the fields a caller may change. Nil fields are left as they are.
type UserPatch struct {
	Email    *string
	Password *string
	IsActive *bool
}

// UserService maintains existing accounts. Every write is checked against the
// version the caller observed; a stale version yields a RetryRequest error that still
// matches errs.ErrVersionConflict.
type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	Update(ctx context.Context, id, observed uuid.UUID, patch UserPatch) (*model.User, error)
	// Delete soft-deletes the user. uuid.Nil as observed version deletes unconditionally.
	Delete(ctx context.Context, id, observed uuid.UUID) (*model.User, error)
	// Restore undeletes the user. Restoring an active user returns it unchanged.
	Restore(ctx context.Context, id, observed uuid.UUID) (*model.User, error)
}

type UserServiceImpl struct {
	users  repository.UserRepository
	hasher PasswordHasher
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, hasher PasswordHasher) *UserServiceImpl {
	return &UserServiceImpl{users: users, hasher: hasher}
}

// Get returns an active user. Soft-deleted users are not found.
func (s *UserServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "")
	}
	if u.IsDeleted() {
		return nil, userNotFound(id)
	}
	return u, nil
}

func (s *UserServiceImpl) Update(ctx context.Context, id, observed uuid.UUID, patch UserPatch) (*model.User, error) {
	if observed == uuid.Nil {
		return nil, errs.New(errs.KindInvalidRequest, "version is required")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil {
		email, err := validate.Email(*patch.Email)
		if err != nil {
			return nil, err
		}
		u.Email = email
	}
	if patch.Password != nil {
		if err := validate.Password(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.HashPassword(*patch.Password)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindPasswordHashing)
		}
		u.HashedPassword = hash
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}

	u.Version = observed
	out, err := s.users.Update(ctx, u)
	if err != nil {
		return nil, s.translate(err, u.Email)
	}
	return out, nil
}

func (s *UserServiceImpl) Delete(ctx context.Context, id, observed uuid.UUID) (*model.User, error) {
	if observed == uuid.Nil {
		ok, err := s.users.Delete(ctx, id)
		if err != nil {
			return nil, s.translate(err, "")
		}
		if !ok {
			return nil, userNotFound(id)
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, s.translate(err, "")
		}
		return u, nil
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Version = observed
	u.SoftDelete()
	out, err := s.users.Update(ctx, u)
	if err != nil {
		return nil, s.translate(err, "")
	}
	return out, nil
}

func (s *UserServiceImpl) Restore(ctx context.Context, id, observed uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "")
	}
	if !u.IsDeleted() {
		return u, nil
	}
	u.Version = observed
	u.Restore()
	out, err := s.users.Update(ctx, u)
	if err != nil {
		return nil, s.translate(err, u.Email)
	}
	return out, nil
}

// translate lifts repository errors to service kinds. The repository error stays in
// the chain as the cause.
func (s *UserServiceImpl) translate(err error, email string) error {
	ae, ok := errs.As(err)
	if !ok {
		return err
	}
	switch ae.Kind() {
	case errs.KindVersionConflict:
		return errs.Wrap(err, errs.KindRetryRequest).WithDetails(ae.Details())
	case errs.KindEntityNotFound:
		return errs.Wrap(err, errs.KindUserNotFound)
	case errs.KindDuplicateEntity:
		if email == "" {
			return errs.Wrap(err, errs.KindUserAlreadyExists)
		}
		return errs.Wrap(err, errs.KindUserAlreadyExists, email)
	default:
		return err
	}
}

func userNotFound(id uuid.UUID) error {
	return errs.New(errs.KindUserNotFound).WithDetail("id", id.String())
}
