package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/junyuhe/scholarbot/backend/internal/handler/chat"
	middlewarePkg "github.com/junyuhe/scholarbot/backend/internal/middleware"
	"github.com/junyuhe/scholarbot/backend/internal/pipeline"
)

// NewRouter wires HTTP routes to the answering pipeline.
func NewRouter(orchestrator *pipeline.Orchestrator) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	h := chatHandler.New(orchestrator)

	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})

	return r
}
