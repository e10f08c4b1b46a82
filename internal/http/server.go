package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/health"
	"github.com/allisson/chainsync/internal/outbox/usecase"
)

// HealthReporter exposes the system health rollup.
type HealthReporter interface {
	GetHealthStatus() *health.HealthStatus
}

// ProviderHealthReporter exposes per-network provider health.
type ProviderHealthReporter interface {
	HealthSnapshot() map[chaindomain.Network]chaindomain.ProviderHealth
}

// StatusServer serves the operational read-only endpoints: system
// health, outbox processing stats, and provider health.
type StatusServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewStatusServer creates a new StatusServer.
func NewStatusServer(
	host string,
	port int,
	logger *slog.Logger,
	healthReporter HealthReporter,
	providerReporter ProviderHealthReporter,
	store usecase.Store,
) *StatusServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))

	router.GET("/healthz", healthzHandler(healthReporter))
	router.GET("/stats", statsHandler(store))
	router.GET("/providers", providersHandler(providerReporter))

	return &StatusServer{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *StatusServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the status HTTP server.
func (s *StatusServer) Start(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("starting status server", slog.String("addr", s.server.Addr))
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start status server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the status HTTP server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("shutting down status server")
	}
	return s.server.Shutdown(ctx)
}

// healthzHandler reports the system rollup. A degraded system still
// answers 200 so orchestrators do not restart a partially working
// process; only an unhealthy rollup maps to 503.
func healthzHandler(reporter HealthReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := reporter.GetHealthStatus()

		code := http.StatusOK
		if status.OverallStatus == health.SystemStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":          status.OverallStatus,
			"services":        status.Services,
			"critical_issues": status.CriticalIssues,
		})
	}
}

// statsHandler reports outbox processing counts per status.
func statsHandler(store usecase.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.GetProcessingStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// providersHandler reports per-network provider health.
func providersHandler(reporter ProviderHealthReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, reporter.HealthSnapshot())
	}
}
