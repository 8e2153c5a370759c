// Package router assembles the HTTP routes for an application.
package router

import (
	"net/http"

	"naskah/handler"
	"naskah/internal/app"
	"naskah/internal/auth"
	docHandler "naskah/internal/document"
	"naskah/internal/document/repository"
	"naskah/internal/document/service"
	"naskah/middleware"
	"naskah/socket"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func Setup(a *app.App) http.Handler {
	r := chi.NewRouter()

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = a.Config.AllowedOrigins()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.Log.Named("http")))
	r.Use(middleware.Recoverer(a.Log))
	r.Use(middleware.CORS(cors))

	health := handler.NewHealthHandler(a.DB, nil)
	if a.Cache != nil {
		health = handler.NewHealthHandler(a.DB, a.Cache)
	}
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// GET and POST share one dispatcher; other methods get a 405 from it.
	r.Handle("/api/auth/*", auth.NewHandler(a.Auth, a.Log.Named("auth")))

	docRepo := repository.NewDocumentRepository(a.DB)
	docService := service.NewDocumentService(docRepo, a.Hub)
	docs := docHandler.NewDocumentHandler(docService)

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     socket.OriginChecker(a.Config.AllowedOrigins()),
	}

	r.Route("/api/documents", func(r chi.Router) {
		r.Use(middleware.RequireSession(a.Auth))
		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			socket.ServeWs(a.Hub, upgrader, w, r, auth.UserIDFromContext(r.Context()))
		})
		docs.Routes(r)
	})

	return r
}
