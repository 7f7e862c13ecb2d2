package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	limits "github.com/gin-contrib/size"
	"github.com/gin-gonic/gin"

	"github.com/claimy/claimy-admin/internal/api"
	"github.com/claimy/claimy-admin/internal/config"
	"github.com/claimy/claimy-admin/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

type Server struct {
	cfg     *config.Config
	logger  *logger.Logger
	router  *gin.Engine
	closers []closer
}

func New(cfg *config.Config, deps api.Dependencies) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	if cfg.MaxBodyBytes > 0 {
		router.Use(limits.RequestSizeLimiter(cfg.MaxBodyBytes))
	}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	api.SetupRoutes(router, deps)

	return &Server{
		cfg:    cfg,
		logger: deps.Logger,
		router: router,
	}
}

// OnShutdown registers fn to run after the HTTP server has drained, in
// reverse registration order.
func (s *Server) OnShutdown(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("Failed to start server", "error", err)
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
	}
	s.close()
	if err != nil {
		return err
	}

	s.logger.Info("Server exited gracefully")
	return nil
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(); err != nil {
			s.logger.Error("Failed to close "+c.name, "error", err)
		}
	}
	s.closers = nil
}

// Mail and asset calls may take up to the upstream timeout.
func (s *Server) writeTimeout() time.Duration {
	if s.cfg.UpstreamTimeout+10*time.Second > 30*time.Second {
		return s.cfg.UpstreamTimeout + 10*time.Second
	}
	return 30 * time.Second
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", statusCode,
			"latency", latency.String(),
			"user_agent", c.Request.UserAgent(),
		}
		if statusCode >= http.StatusInternalServerError {
			logger.Warn("HTTP Request", fields...)
			return
		}
		logger.Info("HTTP Request", fields...)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		// Browsers reject credentialed requests to a wildcard origin.
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
		return cors.New(corsConfig)
	}
	corsConfig.AllowOrigins = origins
	return cors.New(corsConfig)
}
