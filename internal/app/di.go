// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/manager"
	"github.com/allisson/chainsync/internal/chain/provider"
	"github.com/allisson/chainsync/internal/chain/rpc"
	"github.com/allisson/chainsync/internal/config"
	"github.com/allisson/chainsync/internal/database"
	"github.com/allisson/chainsync/internal/health"
	chainsyncHTTP "github.com/allisson/chainsync/internal/http"
	"github.com/allisson/chainsync/internal/metrics"
	outboxRepository "github.com/allisson/chainsync/internal/outbox/repository"
	outboxUsecase "github.com/allisson/chainsync/internal/outbox/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager       database.TxManager
	providerManager *manager.ProviderManager
	healthManager   *health.Manager

	// Repositories
	outboxRepo outboxUsecase.EntryRepository

	// Use Cases
	outboxStore      outboxUsecase.Store
	operationHandler *outboxUsecase.OperationHandler
	processor        *outboxUsecase.Processor

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Servers
	statusServer  *chainsyncHTTP.StatusServer
	metricsServer *chainsyncHTTP.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	dbInit               sync.Once
	txManagerInit        sync.Once
	providerManagerInit  sync.Once
	healthManagerInit    sync.Once
	outboxRepoInit       sync.Once
	outboxStoreInit      sync.Once
	operationHandlerInit sync.Once
	processorInit        sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	statusServerInit     sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// OutboxRepository returns the outbox entry repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.EntryRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// OutboxStore returns the outbox entry store instance.
func (c *Container) OutboxStore() (outboxUsecase.Store, error) {
	var err error
	c.outboxStoreInit.Do(func() {
		c.outboxStore, err = c.initOutboxStore()
		if err != nil {
			c.initErrors["outboxStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxStore"]; exists {
		return nil, storedErr
	}
	return c.outboxStore, nil
}

// ProviderManager returns the chain provider manager instance.
func (c *Container) ProviderManager() (*manager.ProviderManager, error) {
	var err error
	c.providerManagerInit.Do(func() {
		c.providerManager, err = c.initProviderManager()
		if err != nil {
			c.initErrors["providerManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["providerManager"]; exists {
		return nil, storedErr
	}
	return c.providerManager, nil
}

// OperationHandler returns the outbox operation handler instance.
func (c *Container) OperationHandler() (*outboxUsecase.OperationHandler, error) {
	var err error
	c.operationHandlerInit.Do(func() {
		c.operationHandler, err = c.initOperationHandler()
		if err != nil {
			c.initErrors["operationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["operationHandler"]; exists {
		return nil, storedErr
	}
	return c.operationHandler, nil
}

// Processor returns the outbox background processor instance.
func (c *Container) Processor() (*outboxUsecase.Processor, error) {
	var err error
	c.processorInit.Do(func() {
		c.processor, err = c.initProcessor()
		if err != nil {
			c.initErrors["processor"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["processor"]; exists {
		return nil, storedErr
	}
	return c.processor, nil
}

// HealthManager returns the service health manager instance.
func (c *Container) HealthManager() *health.Manager {
	c.healthManagerInit.Do(func() {
		c.healthManager = health.NewManager(health.Config{
			CheckInterval: c.config.HealthCheckInterval,
		}, c.Logger())
	})
	return c.healthManager
}

// MetricsProvider returns the metrics provider instance.
// It returns nil when metrics collection is disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// It falls back to a no-op recorder when metrics collection is disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// StatusServer returns the status HTTP server instance.
func (c *Container) StatusServer() (*chainsyncHTTP.StatusServer, error) {
	var err error
	c.statusServerInit.Do(func() {
		c.statusServer, err = c.initStatusServer()
		if err != nil {
			c.initErrors["statusServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["statusServer"]; exists {
		return nil, storedErr
	}
	return c.statusServer, nil
}

// MetricsServer returns the metrics HTTP server instance.
func (c *Container) MetricsServer() (*chainsyncHTTP.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Stop the background processor if initialized
	if c.processor != nil {
		c.processor.Stop()
	}

	// Shutdown HTTP servers if initialized
	if c.statusServer != nil {
		if err := c.statusServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("status server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Stop background health monitoring if initialized
	if c.healthManager != nil {
		c.healthManager.Shutdown()
	}

	// Disconnect chain providers if initialized
	if c.providerManager != nil {
		c.providerManager.Shutdown(ctx)
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initOutboxRepository creates the outbox entry repository instance.
func (c *Container) initOutboxRepository() (outboxUsecase.EntryRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxStore creates the outbox store with all its dependencies.
func (c *Container) initOutboxStore() (outboxUsecase.Store, error) {
	repo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox store: %w", err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction manager for outbox store: %w", err)
	}

	store := outboxUsecase.NewEntryStore(repo, txManager, c.config.OutboxDefaultMaxAttempts, c.Logger())

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox store: %w", err)
	}

	return outboxUsecase.NewStoreWithMetrics(store, businessMetrics), nil
}

// initProviderManager creates the provider manager and registers one
// provider per configured network.
func (c *Container) initProviderManager() (*manager.ProviderManager, error) {
	networkConfigs, err := c.config.NetworkConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to parse network configs: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for provider manager: %w", err)
	}

	providerManager := manager.NewProviderManager(manager.Config{
		ConnectTimeout: c.config.ChainConnectTimeout,
		MaxErrorCount:  c.config.ChainMaxErrorCount,
	}, businessMetrics, c.Logger())

	for _, networkConfig := range networkConfigs {
		rpcConfig := rpc.Config{
			Endpoint:       networkConfig.RPCURL,
			Timeout:        c.config.ChainConnectTimeout,
			RequestsPerSec: c.config.ChainRPCRequestsPerSec,
			Burst:          c.config.ChainRPCBurst,
		}

		switch networkConfig.Family {
		case chaindomain.FamilyEVM:
			client := rpc.NewEVMRPCClient(rpcConfig, c.config.ChainEVMOperatorAddress)
			providerManager.Register(provider.NewEVMProvider(
				networkConfig, client, c.config.ChainConfirmationPollInterval,
			))
		case chaindomain.FamilySolana:
			client := rpc.NewSolanaRPCClient(rpcConfig, c.config.ChainSolanaRelayerURL)
			providerManager.Register(provider.NewSolanaProvider(
				networkConfig, client, c.config.ChainConfirmationPollInterval,
			))
		default:
			return nil, fmt.Errorf("unsupported chain family: %s", networkConfig.Family)
		}
	}

	return providerManager, nil
}

// initOperationHandler creates the operation handler with all its dependencies.
func (c *Container) initOperationHandler() (*outboxUsecase.OperationHandler, error) {
	store, err := c.OutboxStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox store for operation handler: %w", err)
	}

	providerManager, err := c.ProviderManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider manager for operation handler: %w", err)
	}

	defaultFamily, err := chaindomain.ParseFamily(c.config.ChainDefaultFamily)
	if err != nil {
		return nil, fmt.Errorf("failed to parse default chain family: %w", err)
	}

	handlerConfig := outboxUsecase.HandlerConfig{
		DefaultFamily:       defaultFamily,
		ConfirmationTimeout: c.config.ChainConfirmationTimeout,
	}

	return outboxUsecase.NewOperationHandler(handlerConfig, store, providerManager, c.Logger()), nil
}

// initProcessor creates the background processor with all its dependencies.
func (c *Container) initProcessor() (*outboxUsecase.Processor, error) {
	store, err := c.OutboxStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox store for processor: %w", err)
	}

	handler, err := c.OperationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get operation handler for processor: %w", err)
	}

	processorConfig := outboxUsecase.ProcessorConfig{
		Interval:  c.config.OutboxPollInterval,
		BatchSize: c.config.OutboxBatchSize,
	}

	return outboxUsecase.NewProcessor(processorConfig, store, handler, c.Logger()), nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}

	businessMetrics, err := metrics.NewBusinessMetrics(metricsProvider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return businessMetrics, nil
}

// initStatusServer creates the status HTTP server with all its dependencies.
func (c *Container) initStatusServer() (*chainsyncHTTP.StatusServer, error) {
	store, err := c.OutboxStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox store for status server: %w", err)
	}

	providerManager, err := c.ProviderManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider manager for status server: %w", err)
	}

	server := chainsyncHTTP.NewStatusServer(
		c.config.ServerHost,
		c.config.ServerPort,
		c.Logger(),
		c.HealthManager(),
		providerManager,
		store,
	)

	return server, nil
}

// initMetricsServer creates the metrics HTTP server with all its dependencies.
func (c *Container) initMetricsServer() (*chainsyncHTTP.MetricsServer, error) {
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	server := chainsyncHTTP.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		metricsProvider,
	)

	return server, nil
}
