package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/pricing", func(r chi.Router) {
		r.Get("/", s.handleGetPricing)
		r.Post("/estimate", s.handleEstimate)
		r.Get("/versions", s.handleListVersions)
		r.Get("/version/{ts}", s.handleGetVersion)
		r.Get("/version/{ts}/estimate", s.handleVersionEstimate)
		r.Get("/version/{ts}/text", s.handleVersionText)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/update", s.handleUpdatePricing)
			r.Post("/versions", s.handleRecordVersion)
			r.Get("/restore", s.handleRestore)
			r.Post("/restore", s.handleRestore)
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
