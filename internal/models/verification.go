// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package models

import "time"

// AccountVerification is a single-use, time-bounded token proving control
// of an email address. The token itself is the lookup key; consumption
// deletes the row.
type AccountVerification struct { //nolint:govet // fieldalignment: readability over optimization
	Token     string    `db:"token" json:"-"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
