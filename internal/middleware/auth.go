package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"graderservice/internal/ctxdata"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type Authenticator interface {
	Authenticate(r *http.Request) (model.Principal, error)
}

// NewAuthMiddleware rejects unauthenticated requests with a Basic challenge,
// which makes git clients prompt for credentials.
func NewAuthMiddleware(auth Authenticator, realm string) func(http.Handler) http.Handler {
	challenge := fmt.Sprintf("Basic realm=%q", realm)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, err := auth.Authenticate(r)
			if err != nil {
				if logger, ok := logging.GetFromContext(ctx); ok {
					logger.Info(ctx, "authentication failed",
						zap.String("path", r.URL.Path),
						zap.Error(err),
					)
				}
				w.Header().Set("WWW-Authenticate", challenge)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx = ctxdata.WithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
