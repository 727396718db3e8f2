package http

import (
	"net/http"

	"github.com/google/uuid"

	context_ "github.com/mkrupp/lostbuddy/internal/infra/context"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
)

// ClientIDCookie names the cookie that identifies a client across requests.
const ClientIDCookie = "lb_client"

// ClientIdentityMiddleware creates middleware that binds every request to
// a client ID. A request carrying a valid lb_client cookie keeps its ID;
// any other request is issued a fresh random UUID in a new cookie. The ID
// is added to the request context.
func ClientIdentityMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(ClientIDCookie); err == nil {
			if id, err := uuid.Parse(cookie.Value); err == nil {
				next.ServeHTTP(w, r.WithContext(context_.WithClientID(r.Context(), id.String())))

				return
			}

			log.DebugContext(r.Context(), "ignoring malformed client cookie")
		}

		id := uuid.NewString()

		//nolint:exhaustruct
		http.SetCookie(w, &http.Cookie{
			Name:     ClientIDCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		log.DebugContext(r.Context(), "issued client id", "client", id)

		next.ServeHTTP(w, r.WithContext(context_.WithClientID(r.Context(), id)))
	})
}
