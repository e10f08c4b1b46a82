// Package health manages the lifecycle of long-lived services: it
// initializes them in dependency order, polls their health in the
// background, and gates whether a service may be used.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/allisson/chainsync/internal/errors"
)

// ServiceStatus represents the observed health of a registered service.
type ServiceStatus string

const (
	ServiceStatusUnknown      ServiceStatus = "unknown"
	ServiceStatusInitializing ServiceStatus = "initializing"
	ServiceStatusHealthy      ServiceStatus = "healthy"
	ServiceStatusDegraded     ServiceStatus = "degraded"
	ServiceStatusUnhealthy    ServiceStatus = "unhealthy"
)

// SystemStatus is the rollup over every registered service.
type SystemStatus string

const (
	SystemStatusHealthy   SystemStatus = "healthy"
	SystemStatusDegraded  SystemStatus = "degraded"
	SystemStatusUnhealthy SystemStatus = "unhealthy"
)

// CheckFunc probes one service. A nil CheckFunc means the service is
// assumed healthy once initialized.
type CheckFunc func(ctx context.Context) error

// Initializer is implemented by service instances that need an explicit
// startup step before their first health check.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// CriticalServiceError marks the failure of a critical service during
// fail-fast initialization.
type CriticalServiceError struct {
	Service string
	Err     error
}

func (e *CriticalServiceError) Error() string {
	return fmt.Sprintf("critical service %s failed: %v", e.Service, e.Err)
}

func (e *CriticalServiceError) Unwrap() error {
	return e.Err
}

// ServiceInfo is the manager's record of one registered service.
type ServiceInfo struct {
	Name         string
	Critical     bool
	Dependencies []string
	Status       ServiceStatus
	LastCheck    time.Time
	LastError    *string
	InitDuration time.Duration
}

// InitializationResult reports the outcome of one initialization pass.
type InitializationResult struct {
	Successful       []string
	Failed           []string
	CriticalFailures []string
}

// HealthStatus is a point-in-time snapshot of the whole system.
type HealthStatus struct {
	OverallStatus  SystemStatus
	Services       map[string]ServiceInfo
	CriticalIssues []string
}

// registration is the internal registry record behind a ServiceInfo.
type registration struct {
	info     ServiceInfo
	instance any
	check    CheckFunc
}

// Config holds service health manager configuration
type Config struct {
	// CheckInterval is the background monitoring cadence.
	CheckInterval time.Duration
}

// Manager owns the service registry, the initialization sequence, and
// the background monitor.
type Manager struct {
	config Config
	logger *slog.Logger

	mu       sync.RWMutex
	services map[string]*registration
	order    []string

	monitorMu     sync.Mutex
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// NewManager creates a new Manager.
func NewManager(config Config, logger *slog.Logger) *Manager {
	return &Manager{
		config:   config,
		logger:   logger,
		services: make(map[string]*registration),
	}
}

// RegisterService adds a service to the registry. Duplicate names,
// unregistered dependencies, and dependency cycles are rejected here, so
// initialization never meets a malformed graph.
func (m *Manager) RegisterService(
	name string,
	instance any,
	check CheckFunc,
	critical bool,
	dependencies []string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		return apperrors.Wrap(apperrors.ErrConflict, "service "+name+" is already registered")
	}

	for _, dep := range dependencies {
		if dep == name {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "service "+name+" depends on itself")
		}
		if _, exists := m.services[dep]; !exists {
			return apperrors.Wrap(apperrors.ErrInvalidInput,
				"service "+name+" depends on unregistered service "+dep)
		}
	}

	m.services[name] = &registration{
		info: ServiceInfo{
			Name:         name,
			Critical:     critical,
			Dependencies: dependencies,
			Status:       ServiceStatusUnknown,
		},
		instance: instance,
		check:    check,
	}
	m.order = append(m.order, name)
	return nil
}

// InitializeServices brings every registered service up in dependency
// order. With failFast, the first critical failure aborts the sequence
// with a CriticalServiceError and monitoring is not started; otherwise
// failures are recorded and the pass continues. Monitoring starts
// automatically when no critical service failed.
func (m *Manager) InitializeServices(ctx context.Context, failFast bool) (*InitializationResult, error) {
	result := &InitializationResult{}

	for _, name := range m.topologicalOrder() {
		err := m.initializeOne(ctx, name)
		if err == nil {
			result.Successful = append(result.Successful, name)
			continue
		}

		result.Failed = append(result.Failed, name)

		m.mu.RLock()
		critical := m.services[name].info.Critical
		m.mu.RUnlock()

		if !critical {
			continue
		}

		result.CriticalFailures = append(result.CriticalFailures, name)
		if failFast {
			return result, &CriticalServiceError{Service: name, Err: err}
		}
	}

	if len(result.CriticalFailures) == 0 {
		m.startMonitoring()
	}
	return result, nil
}

// initializeOne runs a single service's init hook and first health check.
func (m *Manager) initializeOne(ctx context.Context, name string) error {
	m.mu.Lock()
	reg := m.services[name]
	reg.info.Status = ServiceStatusInitializing
	instance := reg.instance
	m.mu.Unlock()

	started := time.Now()

	var err error
	if initializer, ok := instance.(Initializer); ok {
		err = initializer.Initialize(ctx)
	}
	if err == nil {
		err = m.runCheck(ctx, name)
	}

	m.mu.Lock()
	reg.info.InitDuration = time.Since(started)
	m.recordResultLocked(reg, err)
	m.mu.Unlock()

	if m.logger != nil {
		if err != nil {
			m.logger.Error("service initialization failed",
				slog.String("service", name),
				slog.Any("error", err),
			)
		} else {
			m.logger.Info("service initialized",
				slog.String("service", name),
				slog.Duration("duration", time.Since(started)),
			)
		}
	}
	return err
}

// runCheck executes a service's health check, converting a panic into an
// error so a misbehaving callback only marks its own service unhealthy.
func (m *Manager) runCheck(ctx context.Context, name string) (err error) {
	m.mu.RLock()
	check := m.services[name].check
	m.mu.RUnlock()

	if check == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health check for %s panicked: %v", name, r)
		}
	}()
	return check(ctx)
}

// recordResultLocked updates one registration after a check. Callers
// hold m.mu.
func (m *Manager) recordResultLocked(reg *registration, err error) {
	reg.info.LastCheck = time.Now().UTC()
	if err != nil {
		reg.info.Status = ServiceStatusUnhealthy
		message := err.Error()
		reg.info.LastError = &message
		return
	}
	reg.info.Status = ServiceStatusHealthy
	reg.info.LastError = nil
}

// CheckServiceAvailability reports whether a service may be used. With
// required, only a healthy or degraded service passes; otherwise an
// unknown service is tolerated.
func (m *Manager) CheckServiceAvailability(name string, required bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, exists := m.services[name]
	if !exists {
		return false
	}

	switch reg.info.Status {
	case ServiceStatusHealthy, ServiceStatusDegraded:
		return true
	case ServiceStatusUnknown, ServiceStatusInitializing:
		return !required
	default:
		return false
	}
}

// GetHealthStatus returns a snapshot of every service plus the system
// rollup: unhealthy when any critical service is down, degraded when
// only non-critical services are down.
func (m *Manager) GetHealthStatus() *HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := &HealthStatus{
		OverallStatus: SystemStatusHealthy,
		Services:      make(map[string]ServiceInfo, len(m.services)),
	}

	for name, reg := range m.services {
		status.Services[name] = reg.info

		if reg.info.Status != ServiceStatusUnhealthy {
			continue
		}
		if reg.info.Critical {
			status.OverallStatus = SystemStatusUnhealthy
			status.CriticalIssues = append(status.CriticalIssues, name)
		} else if status.OverallStatus == SystemStatusHealthy {
			status.OverallStatus = SystemStatusDegraded
		}
	}

	return status
}

// startMonitoring launches the background check loop. A second call
// while the loop runs is a no-op.
func (m *Manager) startMonitoring() {
	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()

	if m.monitorCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.monitorCancel = cancel
	m.monitorDone = make(chan struct{})

	go m.monitor(ctx)

	if m.logger != nil {
		m.logger.Info("health monitoring started",
			slog.Duration("interval", m.config.CheckInterval),
		)
	}
}

// monitor re-runs every health check at the configured interval.
func (m *Manager) monitor(ctx context.Context) {
	defer close(m.monitorDone)

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

// checkAll runs one monitoring sweep.
func (m *Manager) checkAll(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	m.mu.RUnlock()

	for _, name := range names {
		err := m.runCheck(ctx, name)

		m.mu.Lock()
		m.recordResultLocked(m.services[name], err)
		m.mu.Unlock()

		if err != nil && m.logger != nil {
			m.logger.Warn("service health check failed",
				slog.String("service", name),
				slog.Any("error", err),
			)
		}
	}
}

// Shutdown stops the background monitor and waits for it to exit.
func (m *Manager) Shutdown() {
	m.monitorMu.Lock()
	cancel := m.monitorCancel
	done := m.monitorDone
	m.monitorCancel = nil
	m.monitorDone = nil
	m.monitorMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// topologicalOrder returns the registry in dependency order. Because
// registration rejects forward references and cycles, registration order
// already satisfies the dependencies; this keeps the walk explicit.
func (m *Manager) topologicalOrder() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := make(map[string]bool, len(m.services))
	order := make([]string, 0, len(m.services))

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range m.services[name].info.Dependencies {
			visit(dep)
		}
		order = append(order, name)
	}

	for _, name := range m.order {
		visit(name)
	}
	return order
}
