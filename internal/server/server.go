// Package server exposes the poller's health and per-source status over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/apipoller/internal/server/middleware"
	"github/martinmaurice/apipoller/pkg/env"
	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

const (
	DefaultGracefulShutdownTimeout = 10 * time.Second
)

type Config struct {
	port                  string
	readTimeoutInSeconds  time.Duration
	writeTimeoutInSeconds time.Duration
	maxHeaderBytes        int
	version               int
	env                   string
	handler               *gin.Engine
	servicer              statusServicer
	limiter               rate_limiter.RateLimiter
	disableRateLimiter    bool
}

type Option func(config *Config)

func WithDisableRateLimiter(value bool) Option {
	return func(config *Config) {
		config.disableRateLimiter = value
	}
}

// WithRateLimiter replaces the limiter built from the environment.
func WithRateLimiter(limiter rate_limiter.RateLimiter) Option {
	return func(config *Config) {
		config.limiter = limiter
	}
}

func NewServer(servicer statusServicer, envObj *env.Specification, opts ...Option) *Config {
	c := &Config{
		port:                  envObj.ServerPort,
		readTimeoutInSeconds:  envObj.ServerReadTimeoutInSecond,
		writeTimeoutInSeconds: envObj.ServerWriteTimeoutInSecond,
		maxHeaderBytes:        envObj.ServerMaxHeaderBytes,
		version:               envObj.Version,
		env:                   envObj.Env,
		handler:               gin.New(),
		servicer:              servicer,
	}
	if envObj.ServerRequestsPerMinute > 0 {
		c.limiter = rate_limiter.NewTokenBucket(envObj.ServerRequestsPerMinute, time.Minute)
	}

	for _, opt := range opts {
		opt(c)
	}

	c.routes()
	return c
}

func (s *Config) routes() {
	s.handler.Use(gin.Recovery())
	s.handler.Use(middleware.QueueTimeMiddleware)

	if !s.disableRateLimiter && s.limiter != nil {
		s.handler.Use(middleware.RateLimitMiddleware(s.limiter))
	}

	s.handler.GET("/health", healthHandler)
	s.handler.GET("/status", statusHandler(s.servicer, s.version, s.env))
	s.handler.GET("/status/:source", statusBySourceHandler(s.servicer))
}

// Handler returns the routed engine, mostly for tests.
func (s *Config) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Config) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.port,
		Handler:        s.handler,
		ReadTimeout:    s.readTimeoutInSeconds,
		WriteTimeout:   s.writeTimeoutInSeconds,
		MaxHeaderBytes: s.maxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", s.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down the server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultGracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server exited gracefully")
	return nil
}
