// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package database_test

import (
	"testing"

	"github.com/parkwise/accounts/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	var tables []string
	err = db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)

	assert.Contains(t, tables, "users")
	assert.Contains(t, tables, "account_verifications")
	assert.Contains(t, tables, "goose_db_version")
}

func TestMigrateDown(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateDown(db.DB))

	var tables []string
	err = db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)

	// Only the most recent migration is rolled back.
	assert.NotContains(t, tables, "account_verifications")
	assert.Contains(t, tables, "users")
}

func TestAddDefaultParams(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	// Both pragmas come from the default DSN parameters.
	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	var busy int
	require.NoError(t, db.Get(&busy, "PRAGMA busy_timeout"))
	assert.Equal(t, 5000, busy)
}
