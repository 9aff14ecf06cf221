// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package verification manages single-use account verification tokens.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/parkwise/accounts/internal/models"
	"github.com/parkwise/accounts/internal/repository"
)

const (
	// TokenLength is the number of random bytes per token (128 bits).
	TokenLength = 16
	// TokenTTL is how long verification tokens are valid.
	TokenTTL = 24 * time.Hour
)

// ErrNotFound is returned when no live entry matches token and email.
// Expired and consumed entries look identical to absent ones.
var ErrNotFound = errors.New("verification record not found")

// Service issues and consumes verification ledger entries. Issuing a new
// token does not invalidate older ones; each entry stays independently
// honorable until its own expiry.
type Service struct {
	repo *repository.Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewService creates a verification ledger over the given repository.
func NewService(repo *repository.Repository) *Service {
	return &Service{
		repo: repo,
		ttl:  TokenTTL,
		now:  time.Now,
	}
}

// Issue generates a random token, persists the ledger entry and returns
// the raw token. Collisions are rejected by the store's primary key; with
// 128 bits of entropy no retry logic is warranted.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	tok := hex.EncodeToString(b)

	now := s.now()
	entry := &models.AccountVerification{
		Token:     tok,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.CreateVerification(ctx, entry); err != nil {
		return "", fmt.Errorf("persist verification token: %w", err)
	}

	return tok, nil
}

// Consume deletes and returns the entry matching both token and email.
// A token alone is not sufficient; the email must agree. The delete is
// atomic, so a token can be consumed exactly once.
func (s *Service) Consume(ctx context.Context, token, email string) (*models.AccountVerification, error) {
	entry, err := s.repo.ConsumeVerification(ctx, token, email, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PurgeExpired removes entries past their expiry. The ledger itself
// treats expired rows as absent; this is housekeeping for the store.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredVerifications(ctx, s.now())
}
