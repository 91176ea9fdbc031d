// Package api exposes lead rankings over a read-only JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/xaenox/leadbot/internal/leads"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type LeadService interface {
	Rank(ctx context.Context, f leads.Filter) ([]leads.Lead, error)
	Get(ctx context.Context, userID int64) (leads.Lead, error)
	Summary(ctx context.Context) (leads.Summary, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	// Rate is the number of requests per second allowed per client IP.
	Rate  float64
	Burst int
}

type Server struct {
	cfg     Config
	leads   LeadService
	engine  *gin.Engine
	logger  *zap.Logger
	limiter *ipRateLimiter
}

func NewServer(cfg Config, service LeadService, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		leads:   service,
		logger:  logger,
		limiter: newIPRateLimiter(rate.Limit(cfg.Rate), cfg.Burst),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	corsConfig := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	}
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limited := engine.Group("/", s.limiter.middleware())
	limited.GET("/leads", s.listLeads)
	limited.GET("/leads/:id", s.getLead)
	limited.GET("/summary", s.summary)

	return engine
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
