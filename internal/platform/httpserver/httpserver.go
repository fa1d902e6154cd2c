// Package httpserver builds the engine's HTTP server from configuration.
package httpserver

import (
	"net/http"

	"splitlab/internal/platform/config"
)

// New builds an HTTP server with the configured timeouts. The write timeout
// must cover a full Monte-Carlo analysis on the results endpoint.
func New(addr string, cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
