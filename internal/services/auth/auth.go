// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package auth orchestrates the credential and account-verification
// lifecycle: registration, login, verification and token refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/parkwise/accounts/internal/models"
	"github.com/parkwise/accounts/internal/repository"
	"github.com/parkwise/accounts/internal/services/token"
	"github.com/parkwise/accounts/internal/services/verification"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrVerificationNotFound = errors.New("verification record not found or already used")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrNotVerified          = errors.New("account not verified")
	ErrAlreadyVerified      = errors.New("account already verified")
	ErrInvalidEmail         = errors.New("invalid email format")
	ErrPasswordRequired     = errors.New("password is required")
)

// dummyHash is compared against on unknown-email logins so the response
// time does not reveal whether the email exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Notifier delivers verification tokens out of band. Delivery failures
// are reported back; how the message travels is not this package's
// concern.
type Notifier interface {
	SendVerification(ctx context.Context, email, name, tok string) error
}

// Service is the account state machine. Every operation reads
// authoritative state fresh from the repository and writes back once;
// nothing is cached across calls.
type Service struct {
	repo     *repository.Repository
	hasher   *Hasher
	ledger   *verification.Service
	signer   *token.Signer
	notifier Notifier
	now      func() time.Time
}

// NewService wires the account service. The notifier may be nil, in which
// case verification tokens are issued but not delivered.
func NewService(repo *repository.Repository, hasher *Hasher, ledger *verification.Service, signer *token.Signer, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		ledger:   ledger,
		signer:   signer,
		notifier: notifier,
		now:      time.Now,
	}
}

// RegisterParams holds the parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string
	UserType string
}

// LoginResult is the successful login payload.
type LoginResult struct {
	User   *models.SanitizedUser `json:"user"`
	Tokens token.Pair            `json:"tokens"`
}

// VerifyResult reports the outcome of a successful verification.
type VerifyResult struct {
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

// Register creates a new unverified account and issues a verification
// token for it. The credential insert and the ledger insert are two
// separate writes: if the second fails the account still exists,
// unverified, and the resend path recovers it. Notifier failures likewise
// do not undo the registration.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.SanitizedUser, error) {
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if params.Password == "" {
		return nil, ErrPasswordRequired
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	userType := params.UserType
	if userType == "" {
		userType = models.UserTypeCustomer
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        params.Email,
		PasswordHash: passwordHash,
		UserType:     userType,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tok, err := s.ledger.Issue(ctx, user.Email)
	if err != nil {
		slog.Warn("verification_issue_failed", "email", user.Email, "error", err)
	} else if s.notifier != nil {
		if err := s.notifier.SendVerification(ctx, user.Email, user.Email, tok); err != nil {
			slog.Warn("verification_mail_failed", "email", user.Email, "error", err)
		}
	}

	slog.Info("register_success", "user_id", user.ID, "email", user.Email)
	return user.Sanitize(), nil
}

// Login validates the credential and issues a token pair. Unverified
// accounts are rejected before any tokens are signed.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn the same bcrypt work as a real comparison.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		slog.Warn("login_failed", "email", email, "reason", "not_verified")
		return nil, ErrNotVerified
	}

	pair, err := s.signer.IssuePair(s.payload(user), token.LoginRefreshHint)
	if err != nil {
		return nil, err
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return &LoginResult{User: user.Sanitize(), Tokens: pair}, nil
}

// Verify consumes a ledger entry and flips the account's verified flag.
// The consume runs first, so a token is spent even when the flag check
// fails afterwards; verifying twice is an error, not a no-op.
func (s *Service) Verify(ctx context.Context, tok, email string) (*VerifyResult, error) {
	if _, err := s.ledger.Consume(ctx, tok, email); err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}

	if err := s.repo.MarkUserVerified(ctx, user.ID, s.now()); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}

	slog.Info("account_verified", "user_id", user.ID, "email", email)
	return &VerifyResult{Email: user.Email, IsVerified: true}, nil
}

// Refresh re-issues a token pair for an already-authenticated identity.
// The boundary layer has validated the refresh token; no password or
// verification re-check happens here.
func (s *Service) Refresh(_ context.Context, p token.Payload) (token.Pair, error) {
	pair, err := s.signer.IssuePair(p, token.RenewRefreshHint)
	if err != nil {
		return token.Pair{}, err
	}

	slog.Info("session_refreshed", "user_id", p.UserID, "email", p.Email)
	return pair, nil
}

// Resend issues a fresh verification token for an unverified account and
// delivers it. Older outstanding tokens stay valid until their own
// expiry. Unlike during registration, delivery failures are surfaced.
func (s *Service) Resend(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	if user.IsVerified {
		return ErrAlreadyVerified
	}

	tok, err := s.ledger.Issue(ctx, user.Email)
	if err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.SendVerification(ctx, user.Email, user.Email, tok); err != nil {
			return fmt.Errorf("send verification: %w", err)
		}
	}

	slog.Info("verification_resent", "user_id", user.ID, "email", email)
	return nil
}

// ChangePassword replaces the stored credential after re-checking the
// current password. Existing tokens stay valid; they prove identity, not
// the credential.
func (s *Service) ChangePassword(ctx context.Context, p token.Payload, current, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}

	user, err := s.repo.GetUserByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		slog.Warn("password_change_failed", "email", p.Email, "reason", "invalid_password")
		return ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateUserPassword(ctx, user.ID, passwordHash, s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	slog.Info("password_changed", "user_id", user.ID, "email", p.Email)
	return nil
}

// Identity resolves a token payload back to the sanitized credential.
func (s *Service) Identity(ctx context.Context, p token.Payload) (*models.SanitizedUser, error) {
	user, err := s.repo.GetUserByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user.Sanitize(), nil
}

func (s *Service) payload(user *models.User) token.Payload {
	return token.Payload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.UserType,
	}
}
