// Package server exposes the prober over HTTP
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/commjoen/siteprobe/internal/metrics"
	"github.com/commjoen/siteprobe/internal/probe"
	"github.com/commjoen/siteprobe/pkg/models"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Prober checks one target
type Prober interface {
	Probe(ctx context.Context, raw string) (*models.ProbeResponse, error)
}

// Server is the HTTP front end of the prober
type Server struct {
	engine   *gin.Engine
	prober   Prober
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// New builds the router. The metrics endpoint is mounted only when recorder
// is non-nil.
func New(prober Prober, recorder *metrics.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:   gin.New(),
		prober:   prober,
		recorder: recorder,
		logger:   logger,
	}

	s.engine.Use(
		requestID(),
		requestLogger(logger),
		recovery(logger),
		cors(),
	)

	s.engine.HandleMethodNotAllowed = true
	s.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
	})
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Not found"})
	})

	s.engine.POST("/", s.handleProbe)
	s.engine.POST("/api/probe", s.handleProbe)
	s.engine.GET("/health", s.handleHealth)
	if recorder != nil {
		s.engine.GET("/metrics", gin.WrapH(recorder.Handler()))
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
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

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleProbe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)

	var req models.ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("Malformed probe request", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.prober.Probe(c.Request.Context(), req.URL)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, probe.ErrMissingURL) || errors.Is(err, probe.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
