// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/parkwise/accounts/internal/middleware"
	"github.com/parkwise/accounts/internal/services/auth"
)

// AuthHandlers contains handlers for the account lifecycle.
type AuthHandlers struct {
	accounts *auth.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(accounts *auth.Service) *AuthHandlers {
	return &AuthHandlers{accounts: accounts}
}

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

// Register creates a new unverified account.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.accounts.Register(c.Request().Context(), auth.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		UserType: req.UserType,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, user)
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a credential and returns a token pair.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	result, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// Verify consumes a verification token. Token and email arrive as query
// parameters so the mailed link works directly.
func (h *AuthHandlers) Verify(c echo.Context) error {
	code := c.QueryParam("code")
	email := c.QueryParam("email")
	if code == "" || email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "code and email are required"})
	}

	result, err := h.accounts.Verify(c.Request().Context(), code, email)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// ResendRequest is the request body for resending a verification token.
type ResendRequest struct {
	Email string `json:"email"`
}

// Resend issues and mails a fresh verification token.
func (h *AuthHandlers) Resend(c echo.Context) error {
	var req ResendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email is required"})
	}

	if err := h.accounts.Resend(c.Request().Context(), req.Email); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "sent"})
}

// Refresh re-issues a token pair for the identity established by the
// refresh-token middleware.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	p, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
	}

	pair, err := h.accounts.Refresh(c.Request().Context(), p)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, pair)
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the password for the authenticated identity.
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	p, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if err := h.accounts.ChangePassword(c.Request().Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

// Me returns the sanitized credential for the authenticated identity.
func (h *AuthHandlers) Me(c echo.Context) error {
	p, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
	}

	user, err := h.accounts.Identity(c.Request().Context(), p)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, user)
}
