// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/parkwise/accounts/internal/services/auth"
	"github.com/parkwise/accounts/internal/services/token"
)

// errorStatus maps the closed set of service errors to status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrVerificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, token.ErrInvalid),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrMalformed):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotVerified):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrAlreadyVerified),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrPasswordRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// serviceError writes the JSON error response for a service failure.
// Persistence failures are logged and hidden behind a generic message.
func serviceError(c echo.Context, err error) error {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request_failed", "path", c.Path(), "error", err)
		msg = "internal error"
	}
	return c.JSON(status, map[string]string{"error": msg})
}
