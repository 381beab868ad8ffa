package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/model"
)

const entityUser = "user"

const userColumns = `id, email, hashed_password, is_active, version, created_at, updated_at, deleted_at`

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	const q = `
INSERT INTO users (id, email, hashed_password, is_active, version, created_at, updated_at, deleted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q,
		u.ID, u.Email, u.HashedPassword, u.IsActive, u.Version, u.CreatedAt, u.UpdatedAt, u.DeletedAt)
	if isUniqueViolation(err) {
		return nil, errs.Wrap(err, errs.KindDuplicateEntity, entityUser)
	}
	if err != nil {
		return nil, dbError("users.create", err)
	}
	return u.Clone(), nil
}

// GetByID selects a user by ID, including soft-deleted rows.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, dbError("users.get_by_id", err)
	}
	return u, nil
}

// GetByEmail selects an active user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1 AND deleted_at IS NULL`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.New(errs.KindEntityNotFound, entityUser, "with this email")
	}
	if err != nil {
		return nil, dbError("users.get_by_email", err)
	}
	return u, nil
}

// Update applies u if the version it carries is still the stored one.
//
// The stored row is locked for the duration of the transaction and the write is also
// conditional on the observed version, so two writers that observed the same version
// cannot both succeed. Any error rolls the transaction back.
func (r *UserRepo) Update(ctx context.Context, u *model.User) (out *model.User, err error) {
	if u.ID == uuid.Nil {
		return nil, errs.New(errs.KindMissingIdentifier, entityUser)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, dbError("users.update", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			out, err = nil, dbError("users.update", e)
		}
	}()

	const sel = `SELECT version, created_at FROM users WHERE id=$1 FOR UPDATE`
	const upd = `
UPDATE users
SET email=$2, hashed_password=$3, is_active=$4, version=$5, updated_at=$6, deleted_at=$7
WHERE id=$1 AND version=$8`

	var (
		stored    uuid.UUID
		createdAt time.Time
	)
	if err = tx.QueryRow(ctx, sel, u.ID).Scan(&stored, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(u.ID)
		}
		return nil, dbError("users.update", err)
	}
	if err = u.VerifyVersion(stored); err != nil {
		return nil, conflict(err)
	}

	next := u.Clone()
	next.CreatedAt = createdAt
	next.UpdateVersion()

	tag, err := tx.Exec(ctx, upd,
		next.ID, next.Email, next.HashedPassword, next.IsActive, next.Version, next.UpdatedAt, next.DeletedAt, u.Version)
	if isUniqueViolation(err) {
		return nil, errs.Wrap(err, errs.KindDuplicateEntity, entityUser)
	}
	if err != nil {
		return nil, dbError("users.update", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errs.New(errs.KindVersionConflict).WithDetails(map[string]any{
			"entity":           entityUser,
			"id":               u.ID.String(),
			"expected_version": u.Version.String(),
		})
	}
	return next, nil
}

// Delete soft-deletes an active user and rotates its version, so holders of the
// pre-delete version conflict on their next update.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `
UPDATE users
SET deleted_at=$2, updated_at=$2, version=$3
WHERE id=$1 AND deleted_at IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, id, time.Now().UTC(), uuid.Must(uuid.NewV4()))
	if err != nil {
		return false, dbError("users.delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.IsActive, &u.Version,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func notFound(id uuid.UUID) error {
	return errs.New(errs.KindEntityNotFound, entityUser, id.String()).WithDetail("id", id.String())
}

func conflict(err error) error {
	if ae, ok := errs.As(err); ok {
		return ae.WithDetail("entity", entityUser)
	}
	return err
}
