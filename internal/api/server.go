// Package api serves the kiosk control API on the loopback interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kensar/kiosk/internal/app"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP control API for one App.
type Server struct {
	app    *app.App
	http   *http.Server
	logger *slog.Logger
	addr   string
}

// NewServer creates a Server for a listening on addr.
func NewServer(a *app.App, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{app: a, addr: addr, logger: logger.With("component", "api")}
	// No WriteTimeout: the event stream is long-lived.
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Start begins listening for HTTP requests (non-blocking). It returns the
// bound address, which differs from the configured one when the port is 0.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server", "err", err)
		}
	}()
	s.logger.Info("control API listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Shutdown detaches the surface and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Hijacked websocket connections are not tracked by http.Server.
	s.app.Hub.Close()
	return s.http.Shutdown(ctx)
}

// Handler builds the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.app.Metrics.Handler())

	mux.HandleFunc("GET /v1/config", s.handleGetConfig)
	mux.HandleFunc("PATCH /v1/config", s.handleSetConfig)
	mux.HandleFunc("DELETE /v1/config", s.handleClearConfig)

	mux.HandleFunc("GET /v1/admin/pin", s.handleHasPin)
	mux.HandleFunc("PUT /v1/admin/pin", s.handleSetPin)
	mux.HandleFunc("POST /v1/admin/pin/verify", s.handleVerifyPin)

	mux.HandleFunc("GET /v1/device", s.handleDevice)

	mux.HandleFunc("GET /v1/zoom", s.handleGetZoom)
	mux.HandleFunc("PUT /v1/zoom", s.handleSetZoom)
	mux.HandleFunc("POST /v1/surface/events", s.handleSurfaceEvent)

	mux.HandleFunc("POST /v1/app/quit", s.handleQuit)
	mux.HandleFunc("GET /v1/app/version", s.handleVersion)
	mux.HandleFunc("POST /v1/app/shutdown", s.handleShutdown)
	mux.HandleFunc("POST /v1/app/focus", s.handleFocus)

	mux.HandleFunc("GET /v1/update/status", s.handleUpdateStatus)
	mux.Handle("GET /v1/events", s.app.Hub)

	mux.HandleFunc("POST /v1/station/login", s.handleStationLogin)
	mux.HandleFunc("GET /v1/station/url", s.handleStationURL)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path)
	})

	return chain(mux,
		withRequestContext(s.logger),
		withRecovery,
		withObservation(s.app.Metrics),
		withLocalGuard(s.app.Config.AllowedOrigins),
		withBodyLimit(maxBodyBytes),
	)
}

// handleHealth reports liveness and whether a surface is attached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.app.AppVersion(),
		"attached": s.app.Hub.Attached(),
	})
}
