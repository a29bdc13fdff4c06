package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	storageConfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/surfin-tutorial/pkg/batch/core/adapter"
	coreConfig "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// DecodeConfig decodes the surfin.storage.<name> section of cfg.
func DecodeConfig(cfg *coreConfig.Config, name string) (storageConfig.StorageConfig, error) {
	var sc storageConfig.StorageConfig
	raw, ok := cfg.Surfin.StorageConfigs[name]
	if !ok {
		return sc, fmt.Errorf("storage connection '%s' not found in configuration", name)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &sc,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return sc, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return sc, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return sc, nil
}

// Resolver dispatches connection lookups to the provider of the configured storage type.
type Resolver struct {
	cfg       *coreConfig.Config
	providers map[string]StorageProvider
}

// NewResolver creates a Resolver over providers, keyed by their Type.
func NewResolver(cfg *coreConfig.Config, providers ...StorageProvider) *Resolver {
	r := &Resolver{cfg: cfg, providers: make(map[string]StorageProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// ResolveConnection resolves a generic resource connection by name.
func (r *Resolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// ResolveStorageConnection resolves a StorageConnection by name.
func (r *Resolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	sc, err := DecodeConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", sc.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, sc.Type, err)
	}
	return conn, nil
}

// CloseAll closes the connections of every provider.
func (r *Resolver) CloseAll() error {
	var result *multierror.Error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ StorageConnectionResolver = (*Resolver)(nil)

// ResolverParams collects the providers registered in the "storage_providers" group.
type ResolverParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *coreConfig.Config
	Providers []StorageProvider `group:"storage_providers"`
}

// NewResolverFromGroup builds the Resolver and closes its connections on shutdown.
func NewResolverFromGroup(p ResolverParams) *Resolver {
	r := NewResolver(p.Config, p.Providers...)
	p.Lifecycle.Append(fx.Hook{OnStop: func(context.Context) error {
		logger.Debugf("Closing storage connections.")
		return r.CloseAll()
	}})
	return r
}

// Module provides the Resolver as StorageConnectionResolver. Storage providers join
// through the local and gcs modules.
var Module = fx.Options(
	fx.Provide(NewResolverFromGroup),
	fx.Provide(func(r *Resolver) StorageConnectionResolver { return r }),
)
