// Package sandbox is a local stand-in for the fraud-scoring service. It
// scores transfers with a single amount rule and lets an analyst review the
// ones it holds.
package sandbox

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/api"
	"github.com/securebank/txwatch/internal/ingestion"
	"github.com/securebank/txwatch/internal/repository"
)

type Option func(*Handlers)

func WithScorer(s Scorer) Option {
	return func(h *Handlers) { h.scorer = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// WithIDs overrides transaction id generation.
func WithIDs(next func() string) Option {
	return func(h *Handlers) { h.newID = next }
}

// NewRouter creates the Chi router for the sandbox fraud API.
func NewRouter(repo *repository.TransactionRepo, log zerolog.Logger, opts ...Option) http.Handler {
	h := &Handlers{
		repo:  repo,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.importer = ingestion.NewService(repo, h.scorer, log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/transaction/validate", h.Validate)
		r.Put("/transaction/review/{id}", h.Review)
		r.Get("/users/{userId}/transactions", h.ListUserTransactions)
		r.Get("/admin/transactions/log", h.TransactionLog)
		r.Post("/admin/transactions/import", h.ImportTransactions)
	})

	return r
}
