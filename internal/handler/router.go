package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	meetingHandler "github.com/meetingflow/backend/internal/handler/meeting"
	userHandler "github.com/meetingflow/backend/internal/handler/user"
	"github.com/meetingflow/backend/internal/metrics"
	middlewarePkg "github.com/meetingflow/backend/internal/middleware"
	transcriptionService "github.com/meetingflow/backend/internal/service/transcription"
	"github.com/meetingflow/backend/internal/storage"
	"github.com/meetingflow/backend/internal/ws"
	"github.com/meetingflow/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(store storage.Storage, hub *ws.Hub, transcriptions *transcriptionService.Service, wsHandler *ws.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	meetings := meetingHandler.New(store)
	users := userHandler.New(store)

	r.Route("/api", func(api chi.Router) {
		users.RegisterRoutes(api)
		meetings.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":         "healthy",
				"timestamp":      time.Now().UTC().Format(time.RFC3339),
				"connections":    hub.ActiveConnections(),
				"activeMeetings": transcriptions.ActiveMeetingCount(),
			})
		})

		api.Get("/stats/connections", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"activeConnections": hub.ActiveConnections(),
				"activeMeetings":    hub.ActiveMeetings(),
				"timestamp":         time.Now().UTC().Format(time.RFC3339),
			})
		})
	})

	r.Handle("/metrics", metrics.Handler())

	wsHandler.RegisterRoutes(r)

	return r
}
