package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/cantera/papers-backend/internal/domain"
	"github.com/cantera/papers-backend/internal/usecase"
)

type contextKey string

const actorKey contextKey = "actor"

type AuthMiddleware struct {
	sessions *usecase.SessionCodec
}

func NewAuthMiddleware(sessions *usecase.SessionCodec) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// WithActor resolves the session cookie on every request. No cookie leaves
// the request anonymous. A cookie whose signature fails verification is
// rejected with 403: a tampered session is distinct from no session at all.
// Any other defect (expired, malformed) clears the cookie and continues
// anonymously.
func (m *AuthMiddleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.sessions.CookieName())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := m.sessions.Verify(cookie.Value)
		if err != nil {
			if errors.Is(err, usecase.ErrInvalidSignature) {
				http.Error(w, "Session token failed verification", http.StatusForbidden)
				return
			}
			m.sessions.ClearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin must be used after WithActor. Any authenticated GitHub
// identity passes; Committer status is not required.
func (m *AuthMiddleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetActor(r.Context()); !ok {
			http.Error(w, "Login required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCommitter must be used after WithActor. It checks that the
// authenticated actor carries the Committers team tag.
func (m *AuthMiddleware) RequireCommitter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			http.Error(w, "Login required", http.StatusUnauthorized)
			return
		}
		if !actor.IsCommitter() {
			http.Error(w, "Committer access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetActor(ctx context.Context) (*domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*domain.Actor)
	return actor, ok
}
