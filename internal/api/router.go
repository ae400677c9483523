package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/watch"
)

// NewRouter creates the Chi router serving the customer app.
func NewRouter(watcher *watch.Watcher, log zerolog.Logger) http.Handler {
	h := &Handlers{
		watcher: watcher,
		log:     log,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Session lifecycle.
		r.Post("/session", h.StartSession)
		r.Get("/session", h.GetSession)
		r.Delete("/session", h.EndSession)

		// Notifications.
		r.Get("/notifications", h.ListNotifications)
		r.Get("/notifications/stream", h.StreamNotifications)
		r.Post("/notifications/read-all", h.MarkAllRead)
		r.Post("/notifications/{id}/read", h.MarkRead)
		r.Get("/refresh-token", h.GetRefreshToken)

		// Transfers.
		r.Post("/transactions", h.SubmitTransaction)
	})

	return r
}
