package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ShutdownHook releases a resource after the listener has stopped, such as
// the database pool
type ShutdownHook func(ctx context.Context) error

// OnShutdown registers a hook. Hooks run in registration order after the
// HTTP server has drained, sharing the shutdown deadline.
func (s *Server) OnShutdown(hook ShutdownHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *Server) shutdown(serveErr <-chan error) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		s.logger.Error("server shutdown failed", zap.Error(err))
		_ = s.httpServer.Close()
	} else {
		s.logger.Info("server stopped")
	}

	if err := <-serveErr; err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	s.runHooks(ctx)
	return shutdownErr
}

// runHooks runs every hook; a failing hook is logged and the rest still run
func (s *Server) runHooks(ctx context.Context) {
	for i, hook := range s.hooks {
		if err := hook(ctx); err != nil {
			s.logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
		}
	}
}
