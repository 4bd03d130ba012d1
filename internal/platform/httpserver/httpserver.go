// Package httpserver builds the HTTP server for the invoicing admin API.
package httpserver

import (
	"net/http"
	"time"

	"fakturo/internal/platform/config"
)

// New builds the server from configuration. The write timeout must cover a
// generation request that first waits out the per-payment lock.
func New(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
