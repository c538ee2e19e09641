package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
)

// ProviderConstructor creates a MetaInfoProvider from its parameters
type ProviderConstructor func(ctx context.Context, params map[string]string, types *datatype.Registry) (MetaInfoProvider, error)

// FileSystemConstructor creates a FileSystem from its parameters
type FileSystemConstructor func(ctx context.Context, params map[string]string, types *datatype.Registry) (FileSystem, error)

// Registry maps the type names of the descriptors to their constructors
type Registry struct {
	mu          sync.RWMutex
	types       *datatype.Registry
	providers   map[string]ProviderConstructor
	fileSystems map[string]FileSystemConstructor
}

// NewRegistry creates an empty registry. types is passed to every constructor.
func NewRegistry(types *datatype.Registry) *Registry {
	return &Registry{
		types:       types,
		providers:   map[string]ProviderConstructor{},
		fileSystems: map[string]FileSystemConstructor{},
	}
}

// DataTypes returns the data-type registry shared by the constructed stores
func (r *Registry) DataTypes() *datatype.Registry {
	return r.types
}

func (r *Registry) RegisterProvider(typeName string, c ProviderConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[typeName] = c
}

func (r *Registry) RegisterFileSystem(typeName string, c FileSystemConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fileSystems[typeName] = c
}

// ProviderTypes returns the sorted type names of the registered providers
func (r *Registry) ProviderTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FileSystemTypes returns the sorted type names of the registered file systems
func (r *Registry) FileSystemTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fileSystems))
	for n := range r.fileSystems {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProvider creates the MetaInfoProvider described by d
func (r *Registry) NewProvider(ctx context.Context, d common.Descriptor) (MetaInfoProvider, error) {
	r.mu.RLock()
	c, ok := r.providers[d.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, service.ErrUnknownType{Kind: "meta info provider", Type: d.Type}
	}
	p, err := c(ctx, d.Parameters, r.types)
	if err != nil {
		return nil, fmt.Errorf("NewProvider[%s]: %w", d.Type, err)
	}
	return p, nil
}

// NewFileSystem creates the FileSystem described by d
func (r *Registry) NewFileSystem(ctx context.Context, d common.Descriptor) (FileSystem, error) {
	r.mu.RLock()
	c, ok := r.fileSystems[d.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, service.ErrUnknownType{Kind: "file system", Type: d.Type}
	}
	fs, err := c(ctx, d.Parameters, r.types)
	if err != nil {
		return nil, fmt.Errorf("NewFileSystem[%s]: %w", d.Type, err)
	}
	return fs, nil
}

// NewDataStore creates the DataStore described by d
func (r *Registry) NewDataStore(ctx context.Context, d StoreDescriptor) (*DataStore, error) {
	if d.ID == "" {
		return nil, service.ErrMissingParameter{Component: "data store", Parameter: "id"}
	}
	fs, err := r.NewFileSystem(ctx, d.FileSystem)
	if err != nil {
		return nil, fmt.Errorf("NewDataStore[%s].%w", d.ID, err)
	}
	provider, err := r.NewProvider(ctx, d.MetaInfoProvider)
	if err != nil {
		return nil, fmt.Errorf("NewDataStore[%s].%w", d.ID, err)
	}
	return New(d.ID, fs, provider, r.types), nil
}
