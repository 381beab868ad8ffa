package model

import (
	"github.com/and161185/account-keeper/internal/errs"
)

// User represents an account. The password is only ever stored hashed.
type User struct {
	Versioned
	Email          string // unique among non-deleted users
	HashedPassword string
	IsActive       bool
}

// NewUser creates an active user with a fresh id and version.
func NewUser(email, hashedPassword string) (*User, error) {
	u := &User{
		Versioned:      NewVersioned(),
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the fields required at construction.
func (u *User) Validate() error {
	if u.Email == "" || u.HashedPassword == "" {
		return errs.New(errs.KindInvalidEntity, "user", "email and hashed password are required")
	}
	return nil
}

// Clone returns a deep copy; call paths never share a User.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Versioned = u.Versioned.clone()
	return &c
}
