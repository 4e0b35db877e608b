package gateway

import (
	"sort"
	"sync"

	"erp-connector-service/internal/models"
)

// Registry holds one gateway per configured provider
type Registry struct {
	mu       sync.RWMutex
	gateways map[models.ProviderType]*Gateway
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[models.ProviderType]*Gateway)}
}

// Register adds or replaces the gateway for its provider
func (r *Registry) Register(g *Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Provider()] = g
}

// Get returns the gateway for a provider, or nil when none is configured
func (r *Registry) Get(provider models.ProviderType) *Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gateways[provider]
}

// Providers lists configured providers in stable order
func (r *Registry) Providers() []models.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ProviderType, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
