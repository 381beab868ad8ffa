package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/account-keeper/internal/errs"
)

// Versioned is the lifecycle base of every persisted entity.
//
// Existence (DeletedAt) and version are independent axes: SoftDelete and Restore never
// touch Version, and UpdateVersion never touches DeletedAt.
type Versioned struct {
	ID        uuid.UUID  // immutable after creation
	Version   uuid.UUID  // random token, replaced on every committed mutation
	CreatedAt time.Time  // set once
	UpdatedAt *time.Time // nil until the first committed mutation
	DeletedAt *time.Time // non-nil means soft-deleted
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

func newToken() uuid.UUID { return uuid.Must(uuid.NewV4()) }

// NewVersioned returns a fresh lifecycle with a new id and version.
func NewVersioned() Versioned {
	return Versioned{ID: newToken(), Version: newToken(), CreatedAt: now()}
}

// UpdateVersion replaces the version token and bumps UpdatedAt. UpdatedAt never moves
// backwards, even if the wall clock does.
func (v *Versioned) UpdateVersion() {
	next := newToken()
	for next == v.Version {
		next = newToken()
	}
	v.Version = next

	ts := now()
	if v.UpdatedAt != nil && ts.Before(*v.UpdatedAt) {
		ts = *v.UpdatedAt
	}
	v.UpdatedAt = &ts
}

// VerifyVersion checks the version observed by the caller (v.Version) against the
// stored one. A mismatch means another writer committed in between.
func (v *Versioned) VerifyVersion(stored uuid.UUID) error {
	if v.Version == stored {
		return nil
	}
	return errs.New(errs.KindVersionConflict).WithDetails(map[string]any{
		"id":               v.ID.String(),
		"expected_version": v.Version.String(),
		"found_version":    stored.String(),
	})
}

// SoftDelete marks the entity deleted. Deleting a deleted entity keeps the original time.
func (v *Versioned) SoftDelete() {
	if v.DeletedAt != nil {
		return
	}
	ts := now()
	v.DeletedAt = &ts
}

// Restore clears the deletion mark.
func (v *Versioned) Restore() { v.DeletedAt = nil }

// IsDeleted reports whether the entity is soft-deleted.
func (v *Versioned) IsDeleted() bool { return v.DeletedAt != nil }

func (v *Versioned) clone() Versioned {
	c := *v
	if v.UpdatedAt != nil {
		t := *v.UpdatedAt
		c.UpdatedAt = &t
	}
	if v.DeletedAt != nil {
		t := *v.DeletedAt
		c.DeletedAt = &t
	}
	return c
}
