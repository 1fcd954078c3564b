package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cantera/papers-backend/internal/middleware"
)

func NewRouter(handler *Handler, authMiddleware *middleware.AuthMiddleware, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(authMiddleware.WithActor)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Public surface
	r.Get("/", handler.ListPublic)
	r.Get("/paper", handler.LookupPaper)

	// Login flow
	r.Get("/github_login", handler.GithubLogin)
	r.Get("/github_callback/{target}", handler.GithubCallback)
	r.Get("/logout", handler.Logout)

	// Submission: any authenticated actor
	r.Get("/submit", handler.SubmitStatus)
	r.With(authMiddleware.RequireLogin).Post("/submit", handler.SubmitPaper)

	// Moderation: Committers only (the queue view degrades instead of
	// erroring for everyone else)
	r.Get("/approve", handler.ApprovalQueue)
	r.With(authMiddleware.RequireCommitter).Post("/approve/{id}", handler.Approve)
	r.With(authMiddleware.RequireCommitter).Get("/logins", handler.RecentLogins)

	return r
}
