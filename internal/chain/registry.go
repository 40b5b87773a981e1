package chain

import (
	"fmt"
	"log"
	"sync"

	"relayer-backend/internal/config"
)

// Registry resolves chain ids to adapters. Adapters are built lazily from
// the network configuration and cached.
type Registry struct {
	mu       sync.RWMutex
	adapters map[int]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[int]Adapter)}
}

// Register installs an adapter, replacing any existing one for the chain.
// Tests use this to install mocks.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.ChainID()] = adapter
}

// Get returns the adapter for a chain, constructing an EVM adapter from
// config on first use
func (r *Registry) Get(chainID int) (Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[chainID]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	networkConfig, err := config.GetNetworkConfigByChainID(chainID)
	if err != nil {
		return nil, fmt.Errorf("no adapter for chain %d: %w", chainID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if adapter, ok := r.adapters[chainID]; ok {
		return adapter, nil
	}

	evm, err := NewEVMAdapter(networkConfig)
	if err != nil {
		return nil, err
	}
	r.adapters[chainID] = evm
	return evm, nil
}

// Supports reports whether both chains can be served
func (r *Registry) Supports(srcChainID, dstChainID int) bool {
	if _, err := r.Get(srcChainID); err != nil {
		log.Printf("⚠️ [Chain] Source chain %d unsupported: %v", srcChainID, err)
		return false
	}
	if _, err := r.Get(dstChainID); err != nil {
		log.Printf("⚠️ [Chain] Destination chain %d unsupported: %v", dstChainID, err)
		return false
	}
	return true
}
