// Package inboundserver wires the OAuth authorization-server endpoints
// (pkg/oauth) and the inbound MCP JSON-RPC endpoint (pkg/kernel) onto one
// chi router and net/http.Server, grounded on the teacher's pkg/api.Serve
// (chi router, routers-map-mounted-by-prefix, ListenAndServe in a
// goroutine, context-driven Shutdown).
package inboundserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/mcp-funnel/pkg/inboundauth"
	"github.com/stacklok/mcp-funnel/pkg/kernel"
	"github.com/stacklok/mcp-funnel/pkg/logger"
	"github.com/stacklok/mcp-funnel/pkg/oauth"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second

	// mcpEndpointPath is the inbound MCP JSON-RPC-over-HTTP-POST path,
	// spec.md §6's "HTTP POST" inbound transport variant.
	mcpEndpointPath = "/mcp"
)

// Server owns the listener serving both the OAuth authorization-server
// surface (unauthenticated, per RFC 6749/8414) and the inbound MCP
// endpoint (gated by the configured inboundauth.Validator).
type Server struct {
	addr string
	srv  *http.Server
}

// New builds a Server. oauthProvider may be nil to omit the OAuth surface
// entirely (not a spec.md configuration, but convenient for tests that
// only exercise the MCP endpoint).
func New(addr string, k *kernel.Kernel, validator inboundauth.Validator, oauthProvider *oauth.Provider) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))

	if oauthProvider != nil {
		r.Mount("/", oauth.NewHandlers(oauthProvider).Router())
	}

	mcpHandler := inboundauth.Middleware(validator)(newMCPHandler(k))
	r.Post(mcpEndpointPath, mcpHandler.ServeHTTP)
	r.Delete(mcpEndpointPath, mcpHandler.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Run starts the listener and blocks until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting inbound MCP/OAuth server on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info("inbound server stopped")
		return <-errCh
	case err := <-errCh:
		return err
	}
}
