// Package api implements Monument's HTTP boundary: health, context fetch,
// and action submission, built on gin-gonic/gin.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/usize/monument/pkg/admission"
	monctx "github.com/usize/monument/pkg/context"
	"github.com/usize/monument/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	registry *store.Registry
	admitter *admission.Admitter
	builder  *monctx.Builder
}

// NewServer wires a Server over registry and admitter and registers routes.
// ginMode is one of gin's "debug"/"release"/"test" modes; an empty string
// leaves gin's existing global mode untouched.
func NewServer(registry *store.Registry, admitter *admission.Admitter, ginMode string) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), slogLogger())

	s := &Server{
		engine:   engine,
		registry: registry,
		admitter: admitter,
		builder:  monctx.NewBuilder(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.healthHandler)
	s.engine.GET("/sim/:namespace/agent/:agent_id/context", s.contextHandler)
	s.engine.POST("/sim/:namespace/agent/:agent_id/action", s.actionHandler)
}

// Start runs the HTTP server on addr until the process is asked to stop.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	slog.Info("http server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// slogLogger replaces gin's default text logger with structured logging,
// matching the rest of the stack's log/slog usage.
func slogLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
