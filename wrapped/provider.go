package wrapped

import (
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/interface/database/jsonindex"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
)

// ParamPathToJSONFile is the path of the local registry
const ParamPathToJSONFile = jsonindex.ParamPath

// MetaInfoProvider answers the queries with the local registry and the remote catalog
type MetaInfoProvider struct {
	typeName string
	registry *jsonindex.Registry
	remote   RemoteCatalog
	params   map[string]string
	types    *datatype.Registry
	notifymu sync.Mutex
}

// NewMetaInfoProvider creates a provider whose local registry is stored in the file given by the
// parameter path_to_json_file. The other parameters are passed to remote.Init.
// types is used to recognize the entries already registered when a copy is notified.
func NewMetaInfoProvider(ctx context.Context, typeName string, remote RemoteCatalog, params map[string]string, types *datatype.Registry) (*MetaInfoProvider, error) {
	wrapperParams, remoteParams := split(params, ParamPathToJSONFile)
	if wrapperParams[ParamPathToJSONFile] == "" {
		return nil, service.ErrMissingParameter{Component: typeName, Parameter: ParamPathToJSONFile}
	}
	if err := remote.Init(ctx, remoteParams); err != nil {
		return nil, fmt.Errorf("%s.Init: %w", typeName, err)
	}
	registry, err := jsonindex.Open(ctx, wrapperParams[ParamPathToJSONFile], remote.ProvidedDataTypes())
	if err != nil {
		return nil, fmt.Errorf("%s.%w", typeName, err)
	}
	return &MetaInfoProvider{typeName: typeName, registry: registry, remote: remote, params: wrapperParams, types: types}, nil
}

// ProviderConstructor returns the constructor of the wrapped providers of the given type
func ProviderConstructor(typeName string, newRemote func(types *datatype.Registry) RemoteCatalog) datastore.ProviderConstructor {
	return func(ctx context.Context, params map[string]string, types *datatype.Registry) (datastore.MetaInfoProvider, error) {
		return NewMetaInfoProvider(ctx, typeName, newRemote(types), params, types)
	}
}

func (p *MetaInfoProvider) Name() string {
	return p.typeName
}

// Remote returns the remote catalog
func (p *MetaInfoProvider) Remote() RemoteCatalog {
	return p.remote
}

// Query returns the entries of the local registry followed by the remote entries that are not local.
// A remote failure is logged and returns no remote entries.
func (p *MetaInfoProvider) Query(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error) {
	local, err := p.registry.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("Query.%w", err)
	}
	remote, err := p.remote.QueryRemote(ctx, q, local)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("%s: remote query failed (temporary: %v): %v", p.typeName, service.Temporary(err), err)
		return local, nil
	}
	return append(local, remote...), nil
}

// QueryLocal returns the entries of the local registry
func (p *MetaInfoProvider) QueryLocal(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error) {
	return p.registry.Query(ctx, q)
}

// QueryNonLocal returns the entries of Query that are not in the local registry
func (p *MetaInfoProvider) QueryNonLocal(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error) {
	all, err := p.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	local, err := p.QueryLocal(ctx, q)
	if err != nil {
		return nil, err
	}
	return datastore.NonLocal(all, local), nil
}

func (p *MetaInfoProvider) ProvidesDataType(dataType string) bool {
	return p.registry.ProvidesDataType(dataType)
}

func (p *MetaInfoProvider) ProvidedDataTypes() []string {
	return p.registry.ProvidedDataTypes()
}

func (p *MetaInfoProvider) EncapsulatesDataType(dataType string) bool {
	return false
}

// NotifyRetrieved registers the local copy of the entry, unless it is already registered
func (p *MetaInfoProvider) NotifyRetrieved(ctx context.Context, entry common.DataSetMetaInfo) {
	p.notifymu.Lock()
	defer p.notifymu.Unlock()
	registered, err := p.registry.AllData(ctx)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("%s: %v", p.typeName, err)
		return
	}
	if AlreadyLocal(p.types, registered, entry) {
		return
	}
	if err := p.registry.Update(ctx, entry); err != nil {
		log.Logger(ctx).Sugar().Warnf("%s: unable to register %s: %v", p.typeName, entry.Identifier, err)
		return
	}
	log.Logger(ctx).Sugar().Debugf("%s: %s registered", p.typeName, entry.Identifier)
}

func (p *MetaInfoProvider) Update(ctx context.Context, entry common.DataSetMetaInfo) error {
	return p.registry.Update(ctx, entry)
}

func (p *MetaInfoProvider) Remove(ctx context.Context, entry common.DataSetMetaInfo) error {
	return p.registry.Remove(ctx, entry)
}

func (p *MetaInfoProvider) AllData(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	return p.registry.AllData(ctx)
}

// Descriptor merges the parameters of the wrapper and of the remote catalog
func (p *MetaInfoProvider) Descriptor() common.Descriptor {
	return common.Descriptor{
		Type:       p.typeName,
		Parameters: common.MergeParameters(p.params, p.remote.RemoteParams()),
	}
}
