package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mkrupp/lostbuddy/internal/domain"
	context_ "github.com/mkrupp/lostbuddy/internal/infra/context"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	http_ "github.com/mkrupp/lostbuddy/internal/infra/transport/http"
)

// ErrUnexpectedResponse is returned for responses the client cannot interpret.
var ErrUnexpectedResponse = errors.New("unexpected response")

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// BaseURL is the root of the account API
	BaseURL string `env:"URL" env-default:"http://localhost:8080" yaml:"url"`

	// ClientID is sent as the lb_client cookie; empty lets the server issue one
	ClientID string `env:"CLIENT_ID" yaml:"client_id"`

	Timeout time.Duration `env:"TIMEOUT" env-default:"10s" yaml:"timeout"`
}

// HTTPClient implements AuthClient against the account HTTP API. It keeps
// the client ID issued by the server so that subsequent calls act on the
// same session slot.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig

	mu       sync.Mutex
	clientID string
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, a client with cfg.Timeout is used.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout} //nolint:exhaustruct
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.http_client"),
		cfg:        cfg,
		clientID:   cfg.ClientID,
	}
}

// ClientID returns the client ID currently used, which may have been
// issued by the server.
func (c *HTTPClient) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.clientID
}

func (c *HTTPClient) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	var resp struct {
		Name      string    `json:"name"`
		Mobile    string    `json:"mobile"`
		Email     string    `json:"email"`
		City      string    `json:"city"`
		CreatedAt time.Time `json:"createdAt"`
	}

	if err := c.do(ctx, http.MethodPost, "/auth/register", req, http.StatusCreated, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return &domain.Account{
		Name:      resp.Name,
		Mobile:    resp.Mobile,
		Email:     resp.Email,
		City:      resp.City,
		CreatedAt: resp.CreatedAt,
	}, nil
}

func (c *HTTPClient) Login(ctx context.Context, identifier, password string) (domain.Session, error) {
	body := map[string]string{"identifier": identifier, "password": password}

	var current domain.Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, http.StatusOK, &current); err != nil {
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}

	return current, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

func (c *HTTPClient) CurrentSession(ctx context.Context) (domain.Session, bool, error) {
	var current domain.Session

	err := c.do(ctx, http.MethodGet, "/auth/session", nil, http.StatusOK, &current)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return domain.Session{}, false, nil
	} else if err != nil {
		return domain.Session{}, false, fmt.Errorf("get session: %w", err)
	}

	return current, true, nil
}

// APIError is a non-success response of the account API. It unwraps to the
// matching domain error when the code is known.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if err := domain.ErrorFromCode(e.Code); err != nil {
		return err
	}

	if e.Status == http.StatusUnauthorized {
		return domain.ErrAuthentication
	}

	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in any, wantStatus int, out any) (err error) {
	log := c.log.With(logging.Group("http", "method", method, "path", path))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "request failed", "error", err)
		} else {
			log.DebugContext(ctx, "request successful")
		}
	}()

	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(http_.TraceIDHeader, traceID)
	}

	if clientID := c.ClientID(); clientID != "" {
		req.AddCookie(&http.Cookie{Name: http_.ClientIDCookie, Value: clientID}) //nolint:exhaustruct
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	c.rememberClientID(resp)

	if resp.StatusCode != wantStatus {
		return readAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode body: %w", ErrUnexpectedResponse, err)
	}

	return nil
}

func (c *HTTPClient) rememberClientID(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == http_.ClientIDCookie && cookie.Value != "" {
			c.mu.Lock()
			c.clientID = cookie.Value
			c.mu.Unlock()
		}
	}
}

func readAPIError(resp *http.Response) error {
	var body http_.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	return &APIError{Status: resp.StatusCode, Code: body.Error, Message: body.Message}
}
