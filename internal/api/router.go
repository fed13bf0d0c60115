package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/flightrec/pkg/logger"
)

// NewRouter configures the HTTP routes
func NewRouter(runner Runner, log *logger.Logger) http.Handler {
	h := NewHandler(runner, log)
	access := log.Named("http")

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(access))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.GetHealth)
	r.Get("/report", h.GetReport)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("Request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.String("request_id", chimiddleware.GetReqID(r.Context())),
				logger.Duration("duration", time.Since(start)))
		})
	}
}
