package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"employee-data-maintenance/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *AuthHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	// ルート定義
	r.Get("/actuator/health", h.Health)
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/health", h.AuthHealth)
		r.Get("/generate-test-token", h.GenerateTestToken)
		r.Post("/validate", h.Validate)
		r.Post("/regenerate-token", h.RegenerateToken)
	})

	return otelhttp.NewHandler(r, "authstub")
}
