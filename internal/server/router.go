package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oak-labs/corpora/internal/api"
	"github.com/oak-labs/corpora/internal/api/handlers"
	"github.com/oak-labs/corpora/internal/api/middleware"
)

type RouterConfig struct {
	BaseHandler  *handlers.BaseHandler
	ItemHandler  *handlers.ItemHandler
	QueryHandler *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/bases", func(r chi.Router) {
		r.Post("/", cfg.BaseHandler.Create)
		r.Get("/", cfg.BaseHandler.List)
		r.Get("/{id}", cfg.BaseHandler.Get)
		r.Patch("/{id}", cfg.BaseHandler.Update)
		r.Delete("/{id}", cfg.BaseHandler.Delete)

		r.Post("/{id}/items", cfg.ItemHandler.Add)
		r.Get("/{id}/items", cfg.ItemHandler.List)
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/{id}", cfg.ItemHandler.Get)
		r.Get("/{id}/children", cfg.ItemHandler.Children)
		r.Delete("/{id}", cfg.ItemHandler.Delete)
	})

	r.Post("/query", cfg.QueryHandler.Query)

	return r
}
