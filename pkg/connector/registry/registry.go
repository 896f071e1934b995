// Package registry manages connector factory registration. Connector
// packages register themselves in init() and the CLI instantiates them
// from configuration by type name.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/config"
	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/errors"
	"github.com/confluxdata/conflux/pkg/logger"
)

// Factory creates a connector instance from its configuration
type Factory func(cfg config.ConnectorConfig, log *zap.Logger) (core.Connector, error)

// Registry maps connector type names to factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	log       *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		log:       logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register adds a factory under a type name
func (r *Registry) Register(typeName string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeName]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "connector type %s already registered", typeName)
	}

	r.factories[typeName] = factory
	r.log.Info("connector type registered", zap.String("type", typeName))
	return nil
}

// Create instantiates a connector from its configuration
func (r *Registry) Create(cfg config.ConnectorConfig, log *zap.Logger) (core.Connector, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "connector type %s not found", cfg.Type)
	}

	c, err := factory(cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create connector "+cfg.Name)
	}
	return c, nil
}

// List returns the registered type names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks whether a type name is registered
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[typeName]
	return exists
}

// Clear removes all registered factories (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
}

// Global registry functions

// Register adds a factory to the global registry
func Register(typeName string, factory Factory) error {
	return globalRegistry.Register(typeName, factory)
}

// Create instantiates a connector from the global registry
func Create(cfg config.ConnectorConfig, log *zap.Logger) (core.Connector, error) {
	return globalRegistry.Create(cfg, log)
}

// List returns the type names registered globally
func List() []string {
	return globalRegistry.List()
}

// Has checks the global registry for a type name
func Has(typeName string) bool {
	return globalRegistry.Has(typeName)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}
