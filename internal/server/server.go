// Package server is the static file server packaged into the application image.
package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Defaults applied when the environment leaves a setting empty.
const (
	DefaultPort      = "8080"
	DefaultPublicDir = "public"
)

// Config configures the server.
type Config struct {
	Port      string
	PublicDir string
}

// ConfigFromEnv reads PORT and PUBLIC_DIR through getenv.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{Port: getenv("PORT"), PublicDir: getenv("PUBLIC_DIR")}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.PublicDir == "" {
		cfg.PublicDir = DefaultPublicDir
	}
	return cfg
}

// Addr is the listen address on all interfaces.
func (c Config) Addr() string {
	return net.JoinHostPort("0.0.0.0", c.Port)
}

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status string `json:"status"`
}

var healthyBody, _ = json.Marshal(HealthStatus{Status: "ok"})

// Healthz always reports the process as live.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(healthyBody)
}

// NewRouter serves /healthz and the files under publicDir. Directory requests
// resolve to index.html.
func NewRouter(publicDir string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Handle("/*", http.FileServer(http.Dir(publicDir)))
	return r
}

// requestLogger logs each request with method, path, status, and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
