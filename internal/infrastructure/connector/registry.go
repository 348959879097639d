// Package connector holds the platform adapters behind integration.Connector:
// the local store, the storefront and accounting REST APIs and the object
// store backed analytics warehouse.
package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erp/syncengine/internal/domain/integration"
)

var _ integration.ConnectorRegistry = (*Registry)(nil)

// Registry is the in-process ConnectorRegistry
type Registry struct {
	mu         sync.RWMutex
	connectors map[integration.SystemCode]integration.Connector
}

// NewRegistry creates a registry holding the given connectors
func NewRegistry(connectors ...integration.Connector) *Registry {
	r := &Registry{connectors: make(map[integration.SystemCode]integration.Connector)}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the connector for its system
func (r *Registry) Register(c integration.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.System()] = c
}

// Get returns the connector for a system
func (r *Registry) Get(system integration.SystemCode) (integration.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[system]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrConnectorNotFound, system)
	}
	return c, nil
}

// Systems returns the registered systems in stable order
func (r *Registry) Systems() []integration.SystemCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]integration.SystemCode, 0, len(r.connectors))
	for s := range r.connectors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
