// Package domain defines the core chain domain entities and types.
package domain

import (
	"fmt"
	"strings"
)

// Network identifies a configured blockchain network (e.g., "polygon", "solana-devnet").
type Network string

// String returns the network name.
func (n Network) String() string {
	return string(n)
}

// Family groups networks sharing one adapter shape despite differing
// endpoints and ids. All EVM-compatible chains belong to FamilyEVM.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

// ParseFamily converts a family string to a Family.
// Returns an error if the family string is invalid.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(s)) {
	case FamilyEVM:
		return FamilyEVM, nil
	case FamilySolana:
		return FamilySolana, nil
	default:
		return "", fmt.Errorf("invalid chain family: %s (valid options: evm, solana)", s)
	}
}

// NetworkConfig holds the per-network connection settings.
type NetworkConfig struct {
	// Name is the unique network identifier.
	Name Network
	// Family selects the adapter shape for this network.
	Family Family
	// RPCURL is the JSON-RPC endpoint for the network.
	RPCURL string
	// ContractAddress is the NFT contract (EVM) or program (Solana) address.
	ContractAddress string
	// EscrowAddress receives assets held for marketplace listings.
	EscrowAddress string
	// Confirmations is the block depth required before a transaction is
	// considered final on EVM networks.
	Confirmations int64
}

// ParseNetworkConfigs parses a comma-separated list of network entries in
// the form "name:family:rpcurl" (the rpcurl may itself contain colons).
func ParseNetworkConfigs(s string) ([]NetworkConfig, error) {
	var configs []NetworkConfig

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid network entry: %s (expected name:family:rpcurl)", entry)
		}

		family, err := ParseFamily(parts[1])
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", parts[0], err)
		}

		configs = append(configs, NetworkConfig{
			Name:   Network(parts[0]),
			Family: family,
			RPCURL: parts[2],
		})
	}

	return configs, nil
}
