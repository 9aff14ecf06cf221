// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parkwise/accounts/internal/models"
)

// CreateVerification inserts a new account verification entry. A token
// collision is rejected by the primary key and reported as ErrDuplicate.
func (r *Repository) CreateVerification(ctx context.Context, entry *models.AccountVerification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_verifications (token, email, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		entry.Token, entry.Email, entry.CreatedAt, entry.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

// ConsumeVerification atomically deletes and returns the entry matching
// both token and email, provided it has not expired. Check-and-delete is a
// single statement so that of two concurrent consumers exactly one
// observes the row; the other gets ErrNotFound. Expired rows are treated
// identically to absent ones even when not yet purged.
func (r *Repository) ConsumeVerification(ctx context.Context, token, email string, now time.Time) (*models.AccountVerification, error) {
	var entry models.AccountVerification
	err := r.db.GetContext(ctx, &entry,
		`DELETE FROM account_verifications
		 WHERE token = ? AND email = ? AND expires_at > ?
		 RETURNING token, email, created_at, expires_at`,
		token, email, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume verification: %w", err)
	}
	return &entry, nil
}

// DeleteExpiredVerifications purges entries past their expiry and returns
// the number of rows removed.
func (r *Repository) DeleteExpiredVerifications(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM account_verifications WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired verifications: %w", err)
	}
	return res.RowsAffected()
}
