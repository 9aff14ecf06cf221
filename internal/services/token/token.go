// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package token signs and validates the access/refresh token pair.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. The access token is short-lived; the refresh
// token outlives it and is signed with an independent secret.
const (
	AccessTTL  = time.Hour
	RefreshTTL = 12 * time.Hour
)

// Client-facing refresh hints. The expires_at watermark returned with a
// pair is computed from these, independently of the tokens' own embedded
// expiry: one minute after a fresh login, five minutes after a refresh.
const (
	LoginRefreshHint = time.Minute
	RenewRefreshHint = 5 * time.Minute
)

var (
	// ErrInvalid is returned when the signature does not match.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired is returned when the token is past its embedded expiry.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned when the token cannot be decoded.
	ErrMalformed = errors.New("token malformed")
)

// Payload identifies an authenticated account inside a signed token.
// Role is an optional claim; it is omitted from the token when empty.
type Payload struct {
	UserID string
	Email  string
	Role   string
}

// Claims is the JWT claim set. The subject carries the account email.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Pair is the ephemeral token pair handed to clients. It is never
// persisted; every login and refresh produces a fresh one. ExpiresAt is
// the refresh watermark in epoch milliseconds.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Config holds the signing secrets and lifetimes. Both secrets are
// required and must differ so possession of one never grants forgeability
// of the other.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Signer produces and validates signed, self-expiring tokens. Signing is
// stateless; no I/O is involved.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewSigner creates a Signer from explicit configuration values.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("both access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTTL
	if accessTTL == 0 {
		accessTTL = AccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = RefreshTTL
	}

	return &Signer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// SignAccess signs an access token for the payload.
func (s *Signer) SignAccess(p Payload) (string, error) {
	return s.sign(p, s.accessSecret, s.accessTTL)
}

// SignRefresh signs a refresh token for the payload.
func (s *Signer) SignRefresh(p Payload) (string, error) {
	return s.sign(p, s.refreshSecret, s.refreshTTL)
}

// VerifyAccess validates an access token and returns its payload.
func (s *Signer) VerifyAccess(tok string) (Payload, error) {
	return s.verify(tok, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its payload.
func (s *Signer) VerifyRefresh(tok string) (Payload, error) {
	return s.verify(tok, s.refreshSecret)
}

// IssuePair signs both token classes for the payload and computes the
// client-facing expires_at watermark from the given hint.
func (s *Signer) IssuePair(p Payload, hint time.Duration) (Pair, error) {
	access, err := s.SignAccess(p)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.SignRefresh(p)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(hint).UnixMilli(),
	}, nil
}

func (s *Signer) sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: p.UserID,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Signer) verify(tok string, secret []byte) (Payload, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Payload{}, ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return Payload{}, ErrExpired
	case err != nil, !parsed.Valid:
		return Payload{}, ErrInvalid
	}

	return Payload{
		UserID: claims.UserID,
		Email:  claims.Subject,
		Role:   claims.Role,
	}, nil
}
