package server

import (
	"net/http"

	"github.com/cloo-solutions/bookmind/internal/api"
	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Logger        logrus.FieldLogger
	ChatHandler   *handlers.ChatHandler
	SearchHandler *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/chat", func(r chi.Router) {
		r.Post("/", cfg.ChatHandler.Chat)
		r.Post("/continue", cfg.ChatHandler.Continue)
		r.Post("/filter", cfg.ChatHandler.Filter)
	})

	r.Post("/search", cfg.SearchHandler.Search)
	r.Get("/bookmarks/{id}/similar", cfg.SearchHandler.Similar)
	r.Get("/diagnostics", cfg.SearchHandler.Diagnostics)

	return r
}
