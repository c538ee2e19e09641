package datastore

import (
	"context"
	"fmt"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
)

// DataStore composes a FileSystem and a MetaInfoProvider under an identifier
type DataStore struct {
	id       string
	fs       FileSystem
	provider MetaInfoProvider
	types    *datatype.Registry
}

// New creates a DataStore. The data-type registry is used to recognize the sources of Put
// and to compare the entries during the reconciliation.
func New(id string, fs FileSystem, provider MetaInfoProvider, types *datatype.Registry) *DataStore {
	return &DataStore{id: id, fs: fs, provider: provider, types: types}
}

// NewWritable creates a DataStore whose file system and provider must be writable
func NewWritable(id string, fs FileSystem, provider MetaInfoProvider, types *datatype.Registry) (*DataStore, error) {
	if _, ok := fs.(WritableFileSystem); !ok {
		return nil, fmt.Errorf("NewWritable[%s]: file system %s is not writable", id, fs.Name())
	}
	if _, ok := provider.(UpdateableMetaInfoProvider); !ok {
		return nil, fmt.Errorf("NewWritable[%s]: meta info provider %s is not updateable", id, provider.Name())
	}
	return New(id, fs, provider, types), nil
}

// ID of the store
func (ds *DataStore) ID() string {
	return ds.id
}

func (ds *DataStore) FileSystem() FileSystem {
	return ds.fs
}

func (ds *DataStore) MetaInfoProvider() MetaInfoProvider {
	return ds.provider
}

// Get returns the local files of the entry, retrieving them if necessary.
// An entry whose data type is not provided by the store returns no files.
func (ds *DataStore) Get(ctx context.Context, entry common.DataSetMetaInfo) ([]common.FileRef, error) {
	if !ds.provider.ProvidesDataType(entry.DataType) {
		log.Logger(ctx).Sugar().Debugf("%s: data type %s is not provided", ds.id, entry.DataType)
		return nil, nil
	}
	refs, err := ds.fs.Get(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("Get[%s].%w", entry.Identifier, err)
	}
	if len(refs) > 0 {
		ds.provider.NotifyRetrieved(ctx, ds.localEntry(entry, refs))
	}
	return refs, nil
}

// localEntry returns the entry extracted from the local copy, as Scan would return it.
// If the copy is not a single product of the data type of the entry, it returns the entry.
func (ds *DataStore) localEntry(entry common.DataSetMetaInfo, refs []common.FileRef) common.DataSetMetaInfo {
	if len(refs) != 1 || refs[0].URL == entry.Identifier {
		return entry
	}
	local, ok, err := ds.types.Extract(entry.DataType, refs[0].URL)
	if !ok || err != nil {
		return entry
	}
	return local
}

// Query returns all the entries matching the query string
func (ds *DataStore) Query(ctx context.Context, q string) ([]common.DataSetMetaInfo, error) {
	pq, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	return ds.provider.Query(ctx, pq)
}

// QueryLocal returns the entries matching the query string that are locally available
func (ds *DataStore) QueryLocal(ctx context.Context, q string) ([]common.DataSetMetaInfo, error) {
	pq, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	return ds.provider.QueryLocal(ctx, pq)
}

// QueryNonLocal returns the entries matching the query string that still need to be retrieved
func (ds *DataStore) QueryNonLocal(ctx context.Context, q string) ([]common.DataSetMetaInfo, error) {
	pq, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	return ds.provider.QueryNonLocal(ctx, pq)
}

// Put stores the file at sourceURL and registers it.
// It returns an ErrRejected if the store cannot accept it, leaving the store unmodified.
func (ds *DataStore) Put(ctx context.Context, sourceURL string) (common.DataSetMetaInfo, error) {
	fs, ok := ds.fs.(WritableFileSystem)
	if !ok || !ds.fs.CanPut() {
		return common.DataSetMetaInfo{}, service.ErrRejected{Reason: fmt.Sprintf("%s: file system %s is read-only", ds.id, ds.fs.Name())}
	}
	provider, ok := ds.provider.(UpdateableMetaInfoProvider)
	if !ok {
		return common.DataSetMetaInfo{}, service.ErrRejected{Reason: fmt.Sprintf("%s: meta info provider %s is not updateable", ds.id, ds.provider.Name())}
	}
	dataType, ok := ds.types.DataTypeOf(sourceURL)
	if !ok {
		return common.DataSetMetaInfo{}, service.ErrRejected{Reason: fmt.Sprintf("%s: unrecognized data type of %s", ds.id, sourceURL)}
	}
	if !ds.provider.ProvidesDataType(dataType) {
		return common.DataSetMetaInfo{}, service.ErrRejected{Reason: fmt.Sprintf("%s: data type %s is not supported", ds.id, dataType)}
	}
	entry, ok, err := ds.types.Extract(dataType, sourceURL)
	if !ok {
		return common.DataSetMetaInfo{}, service.ErrRejected{Reason: fmt.Sprintf("%s: no meta info extractor for data type %s", ds.id, dataType)}
	}
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Put[%s].%w", sourceURL, err)
	}

	entry, err = fs.Put(ctx, sourceURL, entry)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Put[%s].%w", sourceURL, err)
	}
	// A failure here leaves an unregistered file, registered by the next Update
	if err := provider.Update(ctx, entry); err != nil {
		return entry, fmt.Errorf("Put[%s].%w", sourceURL, err)
	}
	log.Logger(ctx).Sugar().Infof("%s: %s stored as %s", ds.id, sourceURL, entry.Identifier)
	return entry, nil
}

// inJurisdiction returns true if the provider registers this data type
func (ds *DataStore) inJurisdiction(dataType string) bool {
	return ds.provider.ProvidesDataType(dataType) || ds.provider.EncapsulatesDataType(dataType)
}

// Update reconciles the registry of the provider with the content of the file system:
// the files not registered are registered and the registered entries without file are removed.
// A failure on an entry does not stop the reconciliation.
func (ds *DataStore) Update(ctx context.Context) error {
	provider, ok := ds.provider.(UpdateableMetaInfoProvider)
	if !ok {
		return service.ErrRejected{Reason: fmt.Sprintf("%s: meta info provider %s is not updateable", ds.id, ds.provider.Name())}
	}
	files, err := ds.fs.Scan(ctx)
	if err != nil {
		return fmt.Errorf("Update.Scan: %w", err)
	}
	registered, err := provider.AllData(ctx)
	if err != nil {
		return fmt.Errorf("Update.AllData: %w", err)
	}

	registeredByKey := indexByKey(registered)
	filesByKey := indexByKey(files)

	var nbFailures int
	for _, f := range files {
		if !ds.inJurisdiction(f.DataType) || ds.contains(registeredByKey, registered, f) {
			continue
		}
		if err := provider.Update(ctx, f); err != nil {
			nbFailures++
			log.Logger(ctx).Sugar().Warnf("%s: unable to register %s: %v", ds.id, f.Identifier, err)
			continue
		}
		log.Logger(ctx).Sugar().Debugf("%s: %s registered", ds.id, f.Identifier)
	}

	for _, r := range registered {
		if ds.contains(filesByKey, files, r) {
			continue
		}
		if err := provider.Remove(ctx, r); err != nil {
			nbFailures++
			log.Logger(ctx).Sugar().Warnf("%s: unable to remove %s: %v", ds.id, r.Identifier, err)
			continue
		}
		log.Logger(ctx).Sugar().Debugf("%s: %s removed", ds.id, r.Identifier)
	}

	if nbFailures > 0 {
		return fmt.Errorf("Update: %d entries failed to reconcile", nbFailures)
	}
	return nil
}

func indexByKey(entries []common.DataSetMetaInfo) map[common.Key][]common.DataSetMetaInfo {
	index := make(map[common.Key][]common.DataSetMetaInfo, len(entries))
	for _, e := range entries {
		index[e.Key()] = append(index[e.Key()], e)
	}
	return index
}

// contains looks for an entry equal to e, first among the entries with the same identity
func (ds *DataStore) contains(index map[common.Key][]common.DataSetMetaInfo, entries []common.DataSetMetaInfo, e common.DataSetMetaInfo) bool {
	for _, candidate := range index[e.Key()] {
		if ds.types.Equal(candidate, e) {
			return true
		}
	}
	if !ds.types.DiffersByName(e.DataType) {
		// equal entries have the same identifier
		return false
	}
	return ds.types.Contains(entries, e)
}

// ClearCache removes the files retrieved from a remote location and reconciles the registry
func (ds *DataStore) ClearCache(ctx context.Context) error {
	if err := ds.fs.ClearCache(ctx); err != nil {
		return fmt.Errorf("ClearCache.%w", err)
	}
	return ds.Update(ctx)
}

// StoreDescriptor is a serializable description of a DataStore
type StoreDescriptor struct {
	ID               string            `json:"id" yaml:"id"`
	FileSystem       common.Descriptor `json:"file_system" yaml:"file_system"`
	MetaInfoProvider common.Descriptor `json:"meta_info_provider" yaml:"meta_info_provider"`
}

// Descriptor returns the description of the store, sufficient to create it again with a Registry
func (ds *DataStore) Descriptor() StoreDescriptor {
	return StoreDescriptor{
		ID:               ds.id,
		FileSystem:       ds.fs.Descriptor(),
		MetaInfoProvider: ds.provider.Descriptor(),
	}
}
