// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"testing"

	"github.com/parkwise/accounts/internal/database"
	"github.com/parkwise/accounts/internal/repository"
	"github.com/parkwise/accounts/internal/services/token"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	// A second pooled connection would see a fresh empty memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestSigner creates a token signer with fixed test secrets.
func NewTestSigner(t *testing.T) *token.Signer {
	t.Helper()
	signer, err := token.NewSigner(token.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
	})
	require.NoError(t, err)
	return signer
}
