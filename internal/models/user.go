// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package models

import "time"

// User types carried in the user_type column and the optional role claim.
const (
	UserTypeCustomer  = "customer"
	UserTypeParkOwner = "parkowner"
)

// User is the durable credential record, one per unique email.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	UserType     string    `db:"user_type" json:"user_type"`
	IsVerified   bool      `db:"is_verified" json:"is_verified"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SanitizedUser is the projection of a User that is safe to return to
// callers. It has no password hash field at all.
type SanitizedUser struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	UserType   string    `json:"user_type"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Sanitize returns the caller-safe view of the user.
func (u *User) Sanitize() *SanitizedUser {
	return &SanitizedUser{
		ID:         u.ID,
		Email:      u.Email,
		UserType:   u.UserType,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
