// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/parkwise/accounts/internal/handlers"
	"github.com/parkwise/accounts/internal/middleware"
	"github.com/parkwise/accounts/internal/services/auth"
	"github.com/parkwise/accounts/internal/services/token"
	"github.com/parkwise/accounts/internal/services/verification"
	"github.com/parkwise/accounts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureNotifier keeps issued verification tokens in memory so tests can
// follow the mailed link.
type captureNotifier struct {
	tokens map[string]string
}

func (n *captureNotifier) SendVerification(_ context.Context, email, _, tok string) error {
	if n.tokens == nil {
		n.tokens = map[string]string{}
	}
	n.tokens[email] = tok
	return nil
}

func newTestServer(t *testing.T) (*echo.Echo, *captureNotifier) {
	t.Helper()

	_, repo := testutil.NewTestDB(t)
	signer := testutil.NewTestSigner(t)
	notifier := &captureNotifier{}
	accounts := auth.NewService(repo, auth.NewHasher(4), verification.NewService(repo), signer, notifier)

	e := echo.New()
	h := handlers.New(repo)
	ah := handlers.NewAuth(accounts)

	e.GET("/health", h.Health)
	users := e.Group("/auth/users")
	users.POST("/register", ah.Register)
	users.POST("/login", ah.Login)
	users.GET("/me", ah.Me, middleware.RequireAccessToken(signer))
	users.PUT("/password", ah.ChangePassword, middleware.RequireAccessToken(signer))
	account := e.Group("/auth/account")
	account.GET("/verify", ah.Verify)
	account.POST("/resend", ah.Resend)
	e.POST("/auth/refresh", ah.Refresh, middleware.RequireRefreshToken(signer))

	return e, notifier
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func get(e *echo.Echo, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, e *echo.Echo, email string) {
	t.Helper()
	rec := postJSON(e, "/auth/users/register", `{"email":"`+email+`","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func verifyUser(t *testing.T, e *echo.Echo, notifier *captureNotifier, email string) {
	t.Helper()
	tok := notifier.tokens[email]
	require.NotEmpty(t, tok)
	rec := get(e, "/auth/account/verify?code="+tok+"&email="+url.QueryEscape(email), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func loginUser(t *testing.T, e *echo.Echo, email string) token.Pair {
	t.Helper()
	rec := postJSON(e, "/auth/users/login", `{"email":"`+email+`","password":"Secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Tokens token.Pair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result.Tokens
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)

	rec := get(e, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterEndpoint(t *testing.T) {
	e, notifier := newTestServer(t)

	rec := postJSON(e, "/auth/users/register", `{"email":"a@x.com","password":"Secret123"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"a@x.com"`)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotEmpty(t, notifier.tokens["a@x.com"])
}

func TestRegisterEndpoint_DuplicateConflict(t *testing.T) {
	e, _ := newTestServer(t)
	registerUser(t, e, "a@x.com")

	rec := postJSON(e, "/auth/users/register", `{"email":"a@x.com","password":"Other123"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterEndpoint_InvalidEmail(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/auth/users/register", `{"email":"nope","password":"Secret123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint_UnverifiedForbidden(t *testing.T) {
	e, _ := newTestServer(t)
	registerUser(t, e, "a@x.com")

	rec := postJSON(e, "/auth/users/login", `{"email":"a@x.com","password":"Secret123"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginEndpoint_UnknownEmail(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/auth/users/login", `{"email":"nobody@x.com","password":"Secret123"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginEndpoint_WrongPassword(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")

	rec := postJSON(e, "/auth/users/login", `{"email":"a@x.com","password":"Wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	tok := notifier.tokens["a@x.com"]

	rec := get(e, "/auth/account/verify?code="+tok+"&email=a@x.com", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_verified":true`)

	// Second use of the same link.
	rec = get(e, "/auth/account/verify?code="+tok+"&email=a@x.com", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyEndpoint_MissingParams(t *testing.T) {
	e, _ := newTestServer(t)

	rec := get(e, "/auth/account/verify?code=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(e, "/auth/account/verify?email=a@x.com", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendEndpoint(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	first := notifier.tokens["a@x.com"]

	rec := postJSON(e, "/auth/account/resend", `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEqual(t, first, notifier.tokens["a@x.com"])
}

func TestResendEndpoint_AlreadyVerified(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")

	rec := postJSON(e, "/auth/account/resend", `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")
	pair := loginUser(t, e, "a@x.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var renewed token.Pair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &renewed))
	assert.NotEmpty(t, renewed.AccessToken)
	assert.NotEmpty(t, renewed.RefreshToken)
	assert.Greater(t, renewed.ExpiresAt, pair.ExpiresAt)
}

func TestRefreshEndpoint_RejectsAccessToken(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")
	pair := loginUser(t, e, "a@x.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")
	pair := loginUser(t, e, "a@x.com")

	rec := get(e, "/auth/users/me", pair.AccessToken)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"a@x.com"`)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestChangePasswordEndpoint(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")
	pair := loginUser(t, e, "a@x.com")

	req := httptest.NewRequest(http.MethodPut, "/auth/users/password",
		strings.NewReader(`{"current_password":"Secret123","new_password":"Fresh456"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Old password rejected, new one accepted.
	rec = postJSON(e, "/auth/users/login", `{"email":"a@x.com","password":"Secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = postJSON(e, "/auth/users/login", `{"email":"a@x.com","password":"Fresh456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePasswordEndpoint_WrongCurrent(t *testing.T) {
	e, notifier := newTestServer(t)
	registerUser(t, e, "a@x.com")
	verifyUser(t, e, notifier, "a@x.com")
	pair := loginUser(t, e, "a@x.com")

	req := httptest.NewRequest(http.MethodPut, "/auth/users/password",
		strings.NewReader(`{"current_password":"NotTheOne","new_password":"Fresh456"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeEndpoint_Unauthenticated(t *testing.T) {
	e, _ := newTestServer(t)

	rec := get(e, "/auth/users/me", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
