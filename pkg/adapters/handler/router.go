package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Config  *config.Config
	Links   ports.LinkService
	Auth    ports.AuthService
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Ready backs /healthz when set.
	Ready func(ctx context.Context) error
}

// NewRouter creates and configures the main application router
func NewRouter(d Deps) http.Handler {
	h := NewHTTPHandler(d.Links, d.Config.BaseURL)
	authHandler := NewAuthHandler(d.Config, d.Auth)
	mw := NewMiddleware(d.Auth, d.Logger, d.Metrics)

	r := chi.NewRouter()
	r.Use(
		Recover,
		RequestID,
		mw.Logging,
	)
	if d.Config.Timeout > 0 {
		r.Use(chimw.Timeout(d.Config.Timeout))
	}

	// Public Routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/auth/google/login", authHandler.Login)
	r.Get("/auth/google/callback", authHandler.Callback)
	r.Get("/auth/logout", authHandler.Logout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/sign-up", authHandler.SignUp)
		r.Post("/auth/sign-in", authHandler.SignIn)
		r.Post("/auth/refresh", authHandler.Refresh)

		// Protected Routes
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			r.Post("/auth/sign-out", authHandler.SignOut)
			r.Get("/me", authHandler.Me)
			r.Post("/links", h.Create)
			r.Get("/links", h.List)
			r.Delete("/links/{id}", h.Deactivate)
		})
	})

	r.Get("/{id}", h.Redirect)

	return r
}
