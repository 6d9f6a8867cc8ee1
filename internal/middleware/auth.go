package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/liftlog/liftlog/internal/auth"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const AuthTokenHeader = "X-LIFTLOG-TOKEN"

type AuthMiddlewareHandler struct {
	checker              auth.Checker
	allowedPaths         map[string]bool
	allowedPathsPrefixes []string
}

func NewAuthMiddlewareHandler(checker auth.Checker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		checker: checker,
		allowedPaths: map[string]bool{
			"/":        true,
			"/version": true,

			// login-register:
			"/a/login":    true,
			"/a/register": true,
		},
		allowedPathsPrefixes: []string{
			// exercise library is public, read-only access is harmless
			"/exercises",
		},
	}
}

func (h *AuthMiddlewareHandler) pathIsAlwaysAllowed(r *http.Request) bool {
	if h.allowedPaths[r.URL.Path] {
		return true
	}
	if r.Method != http.MethodGet {
		return false
	}
	for _, prefix := range h.allowedPathsPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, PATCH, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.pathIsAlwaysAllowed(r) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := r.Header.Get(AuthTokenHeader)
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			userID, err := h.checker.UserID(ctx, authToken)
			if err != nil {
				if errors.Is(err, auth.ErrNotLoggedIn) {
					log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
					http.Error(w, "no can do", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "not-logged")
					return
				}
				log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "check-logged-err")
				span.RecordError(err)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(ctx, userID)))
		})
	}
}
