package rpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memvault/go-backend/internal/platform/ratelimiter"
)

const DefaultRPCAddr = "127.0.0.1:8791"

// Server serves the daemon's JSON-RPC surface over local HTTP.
type Server struct {
	httpServer     *http.Server
	service        Service
	rpcToken       string
	sessionLimiter *ratelimiter.MapLimiter
}

// Options for NewServer. A zero SessionLimiter disables per-owner limiting.
type Options struct {
	Addr           string
	Token          string
	SessionLimiter *ratelimiter.MapLimiter
}

func NewServer(svc Service, opts Options) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultRPCAddr
	}
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		service:        svc,
		rpcToken:       opts.Token,
		sessionLimiter: opts.SessionLimiter,
	}
	if s.rpcToken == "" {
		slog.Default().Warn("rpc token is not set; RPC auth disabled")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) authorizeRPC(w http.ResponseWriter, r *http.Request) bool {
	if s.rpcToken == "" {
		return true
	}
	supplied := r.Header.Get("X-Memvault-RPC-Token")
	if supplied == "" {
		supplied = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.rpcToken)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}
