package authsvc

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	http_ "github.com/mkrupp/lostbuddy/internal/infra/transport/http"
)

// InvalidCredentialsCode is reported for every failed login with well-formed
// input, so callers cannot tell unknown accounts from wrong passwords.
const InvalidCredentialsCode = "invalid_credentials"

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// Metrics exposes GET /metrics when set
	Metrics bool `env:"METRICS" env-default:"true" yaml:"metrics"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AccountResponse is the public view of a registered account.
type AccountResponse struct {
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"createdAt"`
}

func newAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		Name:      account.Name,
		Mobile:    account.Mobile,
		Email:     account.Email,
		City:      account.City,
		CreatedAt: account.CreatedAt.UTC(),
	}
}

// HTTPTransport serves the account API:
//   - POST /auth/register: create an account
//   - POST /auth/login: authenticate and open a session
//   - POST /auth/logout: close the session
//   - GET /auth/session: return the current session
//   - GET /metrics: prometheus metrics, if enabled
//
// Every request is bound to a client through the lb_client cookie; the
// session endpoints act on that client's slot.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	router  chi.Router
}

var _ http.Handler = (*HTTPTransport)(nil)

// NewHTTPTransport creates the HTTP transport for authSvc. gatherer is the
// source of /metrics and is ignored unless cfg.Metrics is set.
func NewHTTPTransport(authSvc *AuthService, cfg HTTPTransportConfig, gatherer prometheus.Gatherer) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		router:  chi.NewRouter(),
	}

	if cfg.Metrics && gatherer != nil {
		ht.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	ht.router.Route("/auth", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http_.ClientIdentityMiddleware(next, ht.log)
		})

		r.Post("/register", ht.HandleRegister)
		r.Post("/login", ht.HandleLogin)
		r.Post("/logout", ht.HandleLogout)
		r.Get("/session", ht.HandleSession)
	})

	return ht
}

func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleRegister processes registration requests.
// Answers 201 with the account, 400 on invalid input and 409 on conflicts.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ht.respondError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body")

		return
	}

	created, err := ht.authSvc.Register(r.Context(), req)
	if err != nil {
		ht.respondServiceError(w, r, err)

		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newAccountResponse(created))
}

// HandleLogin processes login requests.
// Answers 200 with the session, 400 on missing credentials and 401 otherwise.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ht.respondError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body")

		return
	}

	current, err := ht.authSvc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			ht.respondError(w, r, http.StatusUnauthorized, InvalidCredentialsCode, "invalid credentials")

			return
		}

		ht.respondServiceError(w, r, err)

		return
	}

	render.JSON(w, r, current)
}

// HandleLogout clears the caller's session. Always 204 unless storage fails.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := ht.authSvc.Logout(r.Context()); err != nil {
		ht.respondServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSession returns the caller's session, or 404 if there is none.
func (ht *HTTPTransport) HandleSession(w http.ResponseWriter, r *http.Request) {
	current, ok, err := ht.authSvc.CurrentSession(r.Context())
	if err != nil {
		ht.respondServiceError(w, r, err)

		return
	}

	if !ok {
		ht.respondError(w, r, http.StatusNotFound, "no_session", "not logged in")

		return
	}

	render.JSON(w, r, current)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (ht *HTTPTransport) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	if status == http.StatusInternalServerError {
		ht.log.ErrorContext(r.Context(), "request failed", "error", err)
		ht.respondError(w, r, status, "internal", "internal server error")

		return
	}

	message, ok := domain.ErrorMessage(err)
	if !ok {
		message = http.StatusText(status)
	}

	ht.respondError(w, r, status, domain.ErrorCode(err), message)
}

func (ht *HTTPTransport) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, http_.NewErrorResponse(code, message))
}
