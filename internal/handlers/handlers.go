// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP boundary layer. It binds requests,
// calls the account service and maps its typed errors to status codes.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/parkwise/accounts/internal/repository"
)

// Handlers contains handlers outside the auth surface.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health responds with a simple liveness payload.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
