// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package middleware provides bearer-token middleware for the boundary
// layer.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/parkwise/accounts/internal/services/token"
)

// identityKey is the echo context key the validated payload is stored
// under.
const identityKey = "identity"

// Identity returns the token payload a Require* middleware stored on the
// context.
func Identity(c echo.Context) (token.Payload, bool) {
	p, ok := c.Get(identityKey).(token.Payload)
	return p, ok
}

// RequireAccessToken validates the bearer access token and stores its
// payload on the context.
func RequireAccessToken(signer *token.Signer) echo.MiddlewareFunc {
	return requireToken(signer.VerifyAccess)
}

// RequireRefreshToken validates the bearer refresh token and stores its
// payload on the context. Refresh endpoints trust this identity without
// re-checking the credential.
func RequireRefreshToken(signer *token.Signer) echo.MiddlewareFunc {
	return requireToken(signer.VerifyRefresh)
}

func requireToken(verify func(string) (token.Payload, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			p, err := verify(tok)
			if err != nil {
				msg := "token invalid"
				switch {
				case errors.Is(err, token.ErrExpired):
					msg = "token expired"
				case errors.Is(err, token.ErrMalformed):
					msg = "token malformed"
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
			}

			c.Set(identityKey, p)
			return next(c)
		}
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
