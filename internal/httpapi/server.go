package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/engine"
	"github.com/cerinalabs/foundry/internal/session"
)

// Config configures the HTTP server.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8000,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps the echo HTTP server around the engine.
type Server struct {
	config *Config
	echo   *echo.Echo
	eng    *engine.Engine
	logger *zap.Logger

	requestDuration *prometheus.HistogramVec
}

// New creates an HTTP server over the engine.
func New(cfg *Config, eng *engine.Engine, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		eng:    eng,
		logger: logger,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foundry",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
		}, []string{"route", "method", "status"}),
	}
	if err := prometheus.Register(s.requestDuration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
		s.requestDuration = are.ExistingCollector.(*prometheus.HistogramVec)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.logRequests)

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/stream", s.handleStream)
	e.GET("/state/:thread_id", s.handleState)
	e.POST("/approve", s.handleApprove)
	e.POST("/save-draft", s.handleSaveDraft)

	s.echo = e
	return s, nil
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// logRequests records one structured log line and one latency observation per
// request.
func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		route := c.Path()
		s.requestDuration.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// httpStatusFor maps engine and store errors onto HTTP statuses.
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
