// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/parkwise/accounts/internal/models"
	"github.com/parkwise/accounts/internal/repository"
	"github.com/parkwise/accounts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(token, email string, ttl time.Duration) *models.AccountVerification {
	now := time.Now().UTC()
	return &models.AccountVerification{
		Token:     token,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestCreateVerification(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", 24*time.Hour))

	require.NoError(t, err)
}

func TestCreateVerification_TokenCollision(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", 24*time.Hour)))

	err := repo.CreateVerification(ctx, newEntry("tok1", "b@x.com", 24*time.Hour))

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestConsumeVerification(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", 24*time.Hour)))

	entry, err := repo.ConsumeVerification(ctx, "tok1", "a@x.com", time.Now().UTC())

	require.NoError(t, err)
	assert.Equal(t, "tok1", entry.Token)
	assert.Equal(t, "a@x.com", entry.Email)
}

func TestConsumeVerification_SingleUse(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", 24*time.Hour)))

	_, err := repo.ConsumeVerification(ctx, "tok1", "a@x.com", time.Now().UTC())
	require.NoError(t, err)

	_, err = repo.ConsumeVerification(ctx, "tok1", "a@x.com", time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeVerification_WrongEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", 24*time.Hour)))

	_, err := repo.ConsumeVerification(ctx, "tok1", "b@x.com", time.Now().UTC())

	assert.ErrorIs(t, err, repository.ErrNotFound)

	// The mismatch must not have consumed the entry.
	_, err = repo.ConsumeVerification(ctx, "tok1", "a@x.com", time.Now().UTC())
	require.NoError(t, err)
}

func TestConsumeVerification_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", -time.Minute)))

	_, err := repo.ConsumeVerification(ctx, "tok1", "a@x.com", time.Now().UTC())

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeVerification_MultipleOutstanding(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	// Both tokens for the same email stay independently valid.
	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok1", "a@x.com", 24*time.Hour)))
	require.NoError(t, repo.CreateVerification(ctx, newEntry("tok2", "a@x.com", 24*time.Hour)))

	_, err := repo.ConsumeVerification(ctx, "tok2", "a@x.com", time.Now().UTC())
	require.NoError(t, err)

	_, err = repo.ConsumeVerification(ctx, "tok1", "a@x.com", time.Now().UTC())
	require.NoError(t, err)
}

func TestDeleteExpiredVerifications(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVerification(ctx, newEntry("live", "a@x.com", 24*time.Hour)))
	require.NoError(t, repo.CreateVerification(ctx, newEntry("dead1", "a@x.com", -time.Minute)))
	require.NoError(t, repo.CreateVerification(ctx, newEntry("dead2", "b@x.com", -time.Hour)))

	n, err := repo.DeleteExpiredVerifications(ctx, time.Now().UTC())

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.ConsumeVerification(ctx, "live", "a@x.com", time.Now().UTC())
	require.NoError(t, err)
}
