package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/chainsync/internal/app"
	"github.com/allisson/chainsync/internal/chain/manager"
	"github.com/allisson/chainsync/internal/config"
	chainsyncHTTP "github.com/allisson/chainsync/internal/http"
	outboxUsecase "github.com/allisson/chainsync/internal/outbox/usecase"
)

// providerManagerService adapts the provider manager to the health
// manager's startup hook.
type providerManagerService struct {
	*manager.ProviderManager
}

func (s providerManagerService) Initialize(ctx context.Context) error {
	_, err := s.InitializeProviders(ctx)
	return err
}

// processorService adapts the outbox processor to the health manager's
// startup hook. The processing loop inherits the worker's signal context,
// so a shutdown signal stops it even before the explicit Stop call.
type processorService struct {
	*outboxUsecase.Processor
}

func (s processorService) Initialize(ctx context.Context) error {
	s.Start(ctx)
	return nil
}

// RunWorker starts the outbox worker with graceful shutdown support.
// Services are brought up in dependency order through the health manager:
// database first, then chain providers, then the processing loop. The
// status and metrics servers run alongside. Blocks until receiving
// SIGINT/SIGTERM or encountering a fatal error.
func RunWorker(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Resolve dependencies (this initializes the full graph)
	db, err := container.DB()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	providerManager, err := container.ProviderManager()
	if err != nil {
		return fmt.Errorf("failed to initialize provider manager: %w", err)
	}

	processor, err := container.Processor()
	if err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	statusServer, err := container.StatusServer()
	if err != nil {
		return fmt.Errorf("failed to initialize status server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Register services with the health manager in dependency order
	healthManager := container.HealthManager()

	err = healthManager.RegisterService("database", db, func(ctx context.Context) error {
		return db.PingContext(ctx)
	}, true, nil)
	if err != nil {
		return fmt.Errorf("failed to register database service: %w", err)
	}

	err = healthManager.RegisterService(
		"provider_manager",
		providerManagerService{providerManager},
		func(ctx context.Context) error {
			providerManager.HealthCheckAll(ctx)
			if len(providerManager.HealthyNetworks()) == 0 {
				return errors.New("no healthy chain providers")
			}
			return nil
		},
		true,
		[]string{"database"},
	)
	if err != nil {
		return fmt.Errorf("failed to register provider manager service: %w", err)
	}

	err = healthManager.RegisterService(
		"outbox_processor",
		processorService{processor},
		func(ctx context.Context) error {
			if !processor.IsRunning() {
				return errors.New("processor is not running")
			}
			return nil
		},
		true,
		[]string{"database", "provider_manager"},
	)
	if err != nil {
		return fmt.Errorf("failed to register outbox processor service: %w", err)
	}

	// Bring services up in dependency order
	result, err := healthManager.InitializeServices(ctx, cfg.HealthFailFast)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	logger.Info("services initialized",
		slog.Any("successful", result.Successful),
		slog.Any("failed", result.Failed),
	)

	// Start servers in goroutines
	serverErr := make(chan error, 2)
	go func() {
		if err := statusServer.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("status server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return shutdownWorker(cfg, statusServer, metricsServer, nil)
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		return shutdownWorker(cfg, statusServer, metricsServer, err)
	}
}

// shutdownWorker gracefully stops the HTTP servers. The processor, health
// monitoring, providers, and database are stopped by the container's
// Shutdown when RunWorker returns.
func shutdownWorker(
	cfg *config.Config,
	statusServer *chainsyncHTTP.StatusServer,
	metricsServer *chainsyncHTTP.MetricsServer,
	cause error,
) error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	var shutdownErrors []error
	if cause != nil {
		shutdownErrors = append(shutdownErrors, cause)
	}

	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("status server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return errors.Join(shutdownErrors...)
	}

	return nil
}
