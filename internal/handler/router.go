package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nlzhang/study-buddy/backend/internal/handler/auth"
	"github.com/nlzhang/study-buddy/backend/internal/handler/chat"
	"github.com/nlzhang/study-buddy/backend/internal/handler/events"
	middlewarePkg "github.com/nlzhang/study-buddy/backend/internal/middleware"
	"github.com/nlzhang/study-buddy/backend/internal/service/app"
	"github.com/nlzhang/study-buddy/backend/internal/service/conversation"
)

// NewRouter wires HTTP routes to the core services.
func NewRouter(controller *app.Controller, engine *conversation.Engine, hub *events.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	authHandler := auth.New(controller)
	chatHandler := chat.New(controller, engine)

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		hub.RegisterRoutes(api)
	})

	return r
}
