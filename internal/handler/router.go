package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dodohu918/Medical-chatbot/internal/handler/chat"
	"github.com/dodohu918/Medical-chatbot/internal/handler/ws"
	middlewarePkg "github.com/dodohu918/Medical-chatbot/internal/middleware"
	triageservice "github.com/dodohu918/Medical-chatbot/internal/service/triage"
)

// NewRouter wires HTTP routes to the dialogue engine.
func NewRouter(store triageservice.SessionStore, engine *triageservice.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(store, engine)
	chatHandler.RegisterRoutes(r)

	wsHandler := ws.New(store, engine)
	wsHandler.RegisterRoutes(r)

	return r
}
