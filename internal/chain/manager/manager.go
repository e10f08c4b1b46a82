// Package manager owns the provider registry and the per-network health
// records. It selects working providers for callers and runs the
// periodic health check cycle.
package manager

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/provider"
	apperrors "github.com/allisson/chainsync/internal/errors"
)

// Config holds provider manager configuration
type Config struct {
	// ConnectTimeout bounds each per-network connect and health probe.
	ConnectTimeout time.Duration
	// MaxErrorCount is the error-count ceiling above which a provider is
	// excluded from preferred selection even while connected.
	MaxErrorCount int
}

// HealthCheckMetrics records the outcome of provider health probes.
type HealthCheckMetrics interface {
	RecordProviderHealthCheck(ctx context.Context, network string, healthy bool)
}

// ProviderManager tracks registered providers and their observed health.
type ProviderManager struct {
	config  Config
	metrics HealthCheckMetrics
	logger  *slog.Logger

	mu        sync.RWMutex
	providers map[domain.Network]provider.ChainProvider
	health    map[domain.Network]*domain.ProviderHealth
}

// NewProviderManager creates a new ProviderManager.
func NewProviderManager(config Config, metrics HealthCheckMetrics, logger *slog.Logger) *ProviderManager {
	return &ProviderManager{
		config:    config,
		metrics:   metrics,
		logger:    logger,
		providers: make(map[domain.Network]provider.ChainProvider),
		health:    make(map[domain.Network]*domain.ProviderHealth),
	}
}

// Register adds a provider to the registry. Registering a network twice
// replaces the earlier provider and resets its health record.
func (m *ProviderManager) Register(p provider.ChainProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	network := p.Network()
	m.providers[network] = p
	m.health[network] = &domain.ProviderHealth{
		Network: network,
		Status:  domain.ConnectionStatusUninitialized,
	}
}

// InitializeProviders connects every registered provider concurrently,
// each bounded by the configured connect timeout, and reports per-network
// success. One key per registered network; a provider that fails to
// connect is kept registered with an error health record. Only a registry
// where no provider connected at all is reported as an error.
func (m *ProviderManager) InitializeProviders(ctx context.Context) (map[domain.Network]bool, error) {
	providers := m.snapshot()
	if len(providers) == 0 {
		return nil, apperrors.Wrap(domain.ErrProviderUnavailable, "no providers registered")
	}

	var resultsMu sync.Mutex
	results := make(map[domain.Network]bool, len(providers))

	group, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		group.Go(func() error {
			connected := m.connectOne(ctx, p)
			resultsMu.Lock()
			results[p.Network()] = connected
			resultsMu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if len(m.HealthyNetworks()) == 0 {
		return results, apperrors.Wrap(domain.ErrProviderUnavailable, "no provider connected")
	}
	return results, nil
}

// connectOne connects a single provider and records the outcome.
func (m *ProviderManager) connectOne(ctx context.Context, p provider.ChainProvider) bool {
	connectCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	started := time.Now()
	err := p.Connect(connectCtx)
	elapsed := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	record := m.health[p.Network()]
	record.LastCheck = time.Now().UTC()
	record.ResponseTime = elapsed

	if err != nil {
		record.Status = domain.ConnectionStatusError
		record.ErrorCount++
		message := err.Error()
		record.LastError = &message

		if m.logger != nil {
			m.logger.Error("failed to connect provider",
				slog.String("network", p.Network().String()),
				slog.Any("error", err),
			)
		}
		return false
	}

	record.Status = domain.ConnectionStatusConnected
	record.ErrorCount = 0
	record.LastError = nil

	if m.logger != nil {
		m.logger.Info("provider connected",
			slog.String("network", p.Network().String()),
			slog.Duration("response_time", elapsed),
		)
	}
	return true
}

// GetProvider returns the provider for a specific network.
func (m *ProviderManager) GetProvider(network domain.Network) (provider.ChainProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[network]
	if !ok {
		return nil, apperrors.Wrap(domain.ErrProviderUnavailable, "network "+network.String()+" is not registered")
	}
	return p, nil
}

// GetPreferredProvider returns the best available provider of a family:
// connected, with an error count at or below the configured ceiling,
// ordered by lowest error count, then fastest response time, then
// network name for a stable tie-break.
func (m *ProviderManager) GetPreferredProvider(family domain.Family) (provider.ChainProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		p      provider.ChainProvider
		health domain.ProviderHealth
	}

	var candidates []candidate
	for network, p := range m.providers {
		if p.Family() != family {
			continue
		}
		record := m.health[network]
		if record.Status != domain.ConnectionStatusConnected {
			continue
		}
		if record.ErrorCount > m.config.MaxErrorCount {
			continue
		}
		candidates = append(candidates, candidate{p: p, health: *record})
	}

	if len(candidates) == 0 {
		return nil, apperrors.Wrap(domain.ErrProviderUnavailable, "no healthy "+string(family)+" provider")
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.health.ErrorCount != b.health.ErrorCount {
			return a.health.ErrorCount < b.health.ErrorCount
		}
		if a.health.ResponseTime != b.health.ResponseTime {
			return a.health.ResponseTime < b.health.ResponseTime
		}
		return a.health.Network < b.health.Network
	})

	return candidates[0].p, nil
}

// HealthCheckAll probes every registered provider concurrently, updates
// its health record and reports per-network reachability. A successful
// probe decays the error count by one instead of zeroing it, so a
// flapping provider stays suspect.
func (m *ProviderManager) HealthCheckAll(ctx context.Context) map[domain.Network]bool {
	providers := m.snapshot()

	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.checkOne(ctx, p)
		}()
	}
	wg.Wait()

	results := make(map[domain.Network]bool, len(providers))
	for network, health := range m.HealthSnapshot() {
		results[network] = health.Status == domain.ConnectionStatusConnected
	}
	return results
}

// checkOne probes a single provider and updates its record.
func (m *ProviderManager) checkOne(ctx context.Context, p provider.ChainProvider) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	started := time.Now()
	connected := p.IsConnected(probeCtx)
	elapsed := time.Since(started)

	if m.metrics != nil {
		m.metrics.RecordProviderHealthCheck(ctx, p.Network().String(), connected)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record := m.health[p.Network()]
	record.LastCheck = time.Now().UTC()
	record.ResponseTime = elapsed

	if connected {
		record.Status = domain.ConnectionStatusConnected
		if record.ErrorCount > 0 {
			record.ErrorCount--
		}
		record.LastError = nil
		return
	}

	record.Status = domain.ConnectionStatusError
	record.ErrorCount++
	message := "health check failed"
	record.LastError = &message

	if m.logger != nil {
		m.logger.Warn("provider health check failed",
			slog.String("network", p.Network().String()),
			slog.Int("error_count", record.ErrorCount),
		)
	}
}

// HealthyNetworks returns the networks whose providers are currently
// recorded as connected.
func (m *ProviderManager) HealthyNetworks() []domain.Network {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var networks []domain.Network
	for network, record := range m.health {
		if record.Status == domain.ConnectionStatusConnected {
			networks = append(networks, network)
		}
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i] < networks[j] })
	return networks
}

// HealthSnapshot returns a copy of every health record.
func (m *ProviderManager) HealthSnapshot() map[domain.Network]domain.ProviderHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[domain.Network]domain.ProviderHealth, len(m.health))
	for network, record := range m.health {
		snapshot[network] = *record
	}
	return snapshot
}

// Shutdown disconnects every provider concurrently. Disconnect failures
// are logged and do not stop the remaining disconnects.
func (m *ProviderManager) Shutdown(ctx context.Context) {
	providers := m.snapshot()

	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Disconnect(ctx); err != nil && m.logger != nil {
				m.logger.Error("failed to disconnect provider",
					slog.String("network", p.Network().String()),
					slog.Any("error", err),
				)
			}

			m.mu.Lock()
			m.health[p.Network()].Status = domain.ConnectionStatusDisconnected
			m.mu.Unlock()
		}()
	}
	wg.Wait()
}

// snapshot returns the current providers without holding the lock during
// the callers' network calls.
func (m *ProviderManager) snapshot() []provider.ChainProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	providers := make([]provider.ChainProvider, 0, len(m.providers))
	for _, p := range m.providers {
		providers = append(providers, p)
	}
	return providers
}
