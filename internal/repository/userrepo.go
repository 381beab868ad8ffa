// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/account-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository persists users under optimistic concurrency control.
//
// Every failure is an *errs.AppError: absent rows are errs.ErrNotFound, stale writes are
// errs.ErrVersionConflict, unique violations are errs.ErrAlreadyExists.
type UserRepository interface {
	// Create inserts a new user and returns it as stored.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	// GetByID loads a user by ID, soft-deleted ones included.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads an active (not soft-deleted) user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update writes u if u.Version is still the stored version and returns the stored
	// state with its new version. u itself is left untouched.
	Update(ctx context.Context, u *model.User) (*model.User, error)
	// Delete soft-deletes an active user unconditionally. It reports whether a row changed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
