package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/kgruber/quizbowl-buzzer/internal/api/handlers"
	"github.com/kgruber/quizbowl-buzzer/internal/api/middleware"
	"github.com/kgruber/quizbowl-buzzer/internal/config"
	"github.com/kgruber/quizbowl-buzzer/internal/game"
	"github.com/kgruber/quizbowl-buzzer/internal/websocket"
)

func NewRouter(registry *game.Registry, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	roomHandler := handlers.NewRoomHandler(registry, cfg.PublicURL)
	wsHandler := handlers.NewWebSocketHandler(hub)

	r.Get("/ws", wsHandler.Serve)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/{code}", roomHandler.Get)
			r.Get("/{code}/qr", roomHandler.QR)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}
