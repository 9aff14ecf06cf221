// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt hashing with a fixed cost factor. The salt is
// generated per call and embedded in the output encoding, so hashing the
// same plaintext twice yields different hashes.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. A zero cost selects bcrypt.DefaultCost (10).
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash derives a salted hash from the plaintext password.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether the plaintext matches the hash. The comparison
// is constant-time; a mismatch is a false return, never an error.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
