// Package server wires HTTP handlers into a chi router for the roomchat
// application via routing helpers.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/metrics"
)

// SetupRoutes configures and returns the application router: health check,
// test page, metrics, the room and token API, and the room WebSocket endpoint.
func SetupRoutes(api *API, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log.Named("access")),
		metrics.Middleware,
		middleware.Recoverer,
	)

	r.Get("/", HealthHandler)
	r.Get("/test", TestPageHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/token", api.IssueToken)
		r.Get("/rooms", api.ListRooms)
		r.Post("/rooms", api.CreateRoom)
		r.Get("/rooms/{id}", api.GetRoom)
	})

	r.Get("/ws/rooms/{roomID}", api.WebSocket)

	return r
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
