// Package phoenixfilterbot собирает зависимости бота и управляет его жизненным циклом.
package phoenixfilterbot

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/http-server/mware"
)

// RegisterRoutes регистрирует служебные маршруты: /health и /metrics.
func RegisterRoutes(r chi.Router, logger *slog.Logger, health http.Handler) {
	r.Use(
		middleware.RequestID,
		mware.Logger(logger),
		middleware.Recoverer,
	)

	r.Method(http.MethodGet, "/health", health)
	r.Handle("/metrics", promhttp.Handler())
}
