package authsvc_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/lostbuddy/internal/domain"
	http_ "github.com/mkrupp/lostbuddy/internal/infra/transport/http"
	"github.com/mkrupp/lostbuddy/internal/svc/authsvc"
	"github.com/mkrupp/lostbuddy/internal/svc/authsvc/authclient"
)

const ashaJSON = `{"name":"Asha Rao","mobile":"9876543210","email":"asha@test.com",` +
	`"city":"Pune","password":"secret1","confirmPassword":"secret1"}`

// racingAccounts loses every registration to a concurrent writer.
type racingAccounts struct{ failingAccounts }

func (racingAccounts) FindByEmail(context.Context, string) (*domain.Account, bool, error) {
	return nil, false, nil
}

func (racingAccounts) FindByMobile(context.Context, string) (*domain.Account, bool, error) {
	return nil, false, nil
}

func (racingAccounts) Create(context.Context, *domain.Account) error {
	return fmt.Errorf("insert account: constraint failed: UNIQUE constraint failed: accounts.email (2067): %w",
		domain.ErrEmailTaken)
}

func setupTestServer(t *testing.T) (*authsvc.AuthService, *httptest.Server) {
	t.Helper()

	svc, _ := setupTestService(t)

	reg := prometheus.NewRegistry()
	svc.Metrics.Register(reg)

	transport := authsvc.NewHTTPTransport(svc, authsvc.HTTPTransportConfig{Metrics: true}, reg)
	srv := httptest.NewServer(http_.Handler(transport))
	t.Cleanup(srv.Close)

	return svc, srv
}

func post(t *testing.T, srv *httptest.Server, path, body string, cookies ...*http.Cookie) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func TestHTTPTransport_Register(t *testing.T) {
	t.Parallel()

	_, srv := setupTestServer(t)

	resp, body := post(t, srv, "/auth/register", ashaJSON)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, `"email":"asha@test.com"`)
	assert.NotContains(t, body, "passHash")
	assert.NotContains(t, body, "password")

	resp, body = post(t, srv, "/auth/register", ashaJSON)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, `"error":"email_taken"`)

	resp, body = post(t, srv, "/auth/register", strings.Replace(ashaJSON, `"secret1","confirm`, `"abc","confirm`, 1))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"error":"password_too_short"`)

	resp, body = post(t, srv, "/auth/register", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"error":"invalid_request"`)
}

func TestHTTPTransport_ErrorMessagesAreFixed(t *testing.T) {
	t.Parallel()

	svc, srv := setupTestServer(t)
	svc.Accounts = racingAccounts{}

	resp, body := post(t, srv, "/auth/register", ashaJSON)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"error":"email_taken","message":"an account with this email already exists"}`, body)
	assert.NotContains(t, body, "UNIQUE")
	assert.NotContains(t, body, "insert account")
}

func TestHTTPTransport_Login(t *testing.T) {
	t.Parallel()

	_, srv := setupTestServer(t)

	resp, _ := post(t, srv, "/auth/register", ashaJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantInBody string
	}{
		{
			name:       "by mobile",
			body:       `{"identifier":"9876543210","password":"secret1"}`,
			wantStatus: http.StatusOK,
			wantInBody: `"city":"Pune"`,
		},
		{
			name:       "wrong password",
			body:       `{"identifier":"asha@test.com","password":"nope-nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantInBody: `{"error":"invalid_credentials","message":"invalid credentials"}`,
		},
		{
			name:       "unknown account",
			body:       `{"identifier":"ravi@test.com","password":"secret1"}`,
			wantStatus: http.StatusUnauthorized,
			wantInBody: `{"error":"invalid_credentials","message":"invalid credentials"}`,
		},
		{
			name:       "missing credentials",
			body:       `{"identifier":"","password":""}`,
			wantStatus: http.StatusBadRequest,
			wantInBody: `"error":"missing_credentials"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, "/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, body, tt.wantInBody)
			assert.NotContains(t, body, "passHash")
		})
	}
}

func TestHTTPTransport_SessionFollowsCookie(t *testing.T) {
	t.Parallel()

	_, srv := setupTestServer(t)

	resp, _ := post(t, srv, "/auth/register", ashaJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = post(t, srv, "/auth/login", `{"identifier":"asha@test.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var clientCookie *http.Cookie

	for _, cookie := range resp.Cookies() {
		if cookie.Name == http_.ClientIDCookie {
			clientCookie = cookie
		}
	}

	require.NotNil(t, clientCookie)

	get := func(cookies ...*http.Cookie) int {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/auth/session", nil)
		require.NoError(t, err)

		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}

		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get(clientCookie))
	assert.Equal(t, http.StatusNotFound, get(), "a new client has no session")

	resp, _ = post(t, srv, "/auth/logout", "", clientCookie)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, get(clientCookie))

	resp, _ = post(t, srv, "/auth/logout", "", clientCookie)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHTTPTransport_Metrics(t *testing.T) {
	t.Parallel()

	_, srv := setupTestServer(t)

	resp, _ := post(t, srv, "/auth/register", ashaJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	metricsResp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	data, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, string(data), `lostbuddy_auth_registrations_total{result="success"} 1`)
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, srv := setupTestServer(t)

	client := authclient.NewHTTPClient(authclient.HTTPClientConfig{BaseURL: srv.URL + "/"}, srv.Client())

	created, err := client.Register(ctx, domain.RegisterRequest{
		Name:            "Asha Rao",
		Mobile:          "9876543210",
		Email:           "ASHA@test.com",
		City:            "Pune",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@test.com", created.Email)
	assert.Empty(t, created.PasswordHash)
	assert.NotEmpty(t, client.ClientID())

	_, err = client.Register(ctx, domain.RegisterRequest{
		Name: "Asha Rao", Mobile: "9876543210", Email: "other@test.com",
		Password: "secret1", ConfirmPassword: "secret1",
	})
	require.ErrorIs(t, err, domain.ErrMobileTaken)

	_, err = client.Login(ctx, "asha@test.com", "wrong-password")
	require.ErrorIs(t, err, domain.ErrAuthentication)

	_, err = client.Login(ctx, "", "")
	require.ErrorIs(t, err, domain.ErrMissingCredentials)

	current, err := client.Login(ctx, "9876543210", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", current.Name)

	got, ok, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, current, got)

	// A second client is a different slot.
	other := authclient.NewHTTPClient(authclient.HTTPClientConfig{BaseURL: srv.URL}, srv.Client())
	_, ok, err = other.CurrentSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A client resuming the first ID sees the same session.
	resumed := authclient.NewHTTPClient(authclient.HTTPClientConfig{
		BaseURL:  srv.URL,
		ClientID: client.ClientID(),
	}, srv.Client())
	_, ok, err = resumed.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Logout(ctx))
	require.NoError(t, client.Logout(ctx))

	_, ok, err = client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_ImplementsAuthClient(t *testing.T) {
	t.Parallel()

	var _ authclient.AuthClient = (*authsvc.AuthService)(nil)
}
