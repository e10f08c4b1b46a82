package domain

import "time"

// ConnectionStatus represents the connection lifecycle state of a provider.
type ConnectionStatus string

const (
	ConnectionStatusUninitialized ConnectionStatus = "uninitialized"
	ConnectionStatusConnecting    ConnectionStatus = "connecting"
	ConnectionStatusConnected     ConnectionStatus = "connected"
	ConnectionStatusDisconnected  ConnectionStatus = "disconnected"
	ConnectionStatusError         ConnectionStatus = "error"
)

// ProviderHealth tracks the observed health of one network provider.
// Records are owned and mutated only by the provider manager.
type ProviderHealth struct {
	Network      Network
	Status       ConnectionStatus
	LastCheck    time.Time
	ErrorCount   int
	LastError    *string
	ResponseTime time.Duration
}
