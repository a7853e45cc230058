package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/config"
)

// NewEngine builds a gin engine with the standard middleware chain:
// recovery, request id, access logging, CORS and body limit.
func NewEngine(cfg config.HTTPConfig, log *zap.Logger, extra ...gin.HandlerFunc) (*gin.Engine, error) {
	SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		Recovery(log),
		RequestID(),
		Logging(log),
		CORS(CORSConfig{
			AllowOrigins:     cfg.CORSAllowOrigins,
			AllowMethods:     cfg.CORSAllowMethods,
			AllowHeaders:     cfg.CORSAllowHeaders,
			ExposeHeaders:    []string{RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(extra...)
	return engine, nil
}

// Server is an http.Server that shuts down gracefully when its Run
// context is cancelled.
type Server struct {
	name            string
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
	ready           chan struct{}
	addr            net.Addr
}

// NewServer wraps handler in an http.Server listening on addr.
func NewServer(name, addr string, handler http.Handler, cfg config.HTTPConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		name: name,
		srv: &http.Server{
			Addr:           addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		shutdownTimeout: timeout,
		logger:          log.With(zap.String("server", name)),
		ready:           make(chan struct{}),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	close(s.ready)
	s.logger.Info("HTTP server listening", zap.String("addr", s.addr.String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address; valid after Ready.
func (s *Server) Addr() string {
	if s.addr == nil {
		return s.srv.Addr
	}
	return s.addr.String()
}
