package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"compliancehub/internal/platform/config"
)

// New builds the API server. Server-internal errors such as TLS handshake
// failures go to logger at warn level.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
