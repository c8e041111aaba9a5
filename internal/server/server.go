// Package server exposes the chat proxy and the browser transcript page
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"StudyBuddy/internal/config"
	"StudyBuddy/internal/proxy"
)

// Server is the HTTP front end.
type Server struct {
	cfg     config.ServerConfig
	chat    http.Handler
	logger  *slog.Logger
	limiter *clientLimiter
	router  *mux.Router
}

// New wires the routes around the chat handler.
func New(cfg config.ServerConfig, chat http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		chat:   chat,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit)
	api.Handle("/chat", s.chat).Methods(http.MethodPost)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	registerUI(r)

	// mux skips r.Use middleware for unmatched requests
	r.MethodNotAllowedHandler = s.requestID(s.accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxy.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})))
	r.NotFoundHandler = s.requestID(s.accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxy.WriteError(w, http.StatusNotFound, "Not found")
	})))
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"time":%q}`+"\n", time.Now().UTC().Format(time.RFC3339Nano))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
