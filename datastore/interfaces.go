package datastore

import (
	"context"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/query"
)

// MetaInfoProvider answers catalog queries
type MetaInfoProvider interface {
	Name() string
	// Query returns all the entries matching the query, cached or not
	Query(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error)
	// QueryLocal returns the entries matching the query that are available without any network access
	QueryLocal(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error)
	// QueryNonLocal returns the entries of Query that are not returned by QueryLocal
	QueryNonLocal(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error)
	ProvidesDataType(dataType string) bool
	ProvidedDataTypes() []string
	// EncapsulatesDataType is true if the provider registers entries of this type
	// without serving it directly (e.g. an archive containing products of this type)
	EncapsulatesDataType(dataType string) bool
	// NotifyRetrieved is called when the files of an entry were successfully retrieved,
	// with the entry of the local copy (its identifier is the local path)
	NotifyRetrieved(ctx context.Context, entry common.DataSetMetaInfo)
	Descriptor() common.Descriptor
}

// UpdateableMetaInfoProvider is a MetaInfoProvider whose registry can be modified
type UpdateableMetaInfoProvider interface {
	MetaInfoProvider
	// Update registers the entry
	Update(ctx context.Context, entry common.DataSetMetaInfo) error
	// Remove unregisters the first entry with the same identity
	Remove(ctx context.Context, entry common.DataSetMetaInfo) error
	// AllData returns all the registered entries
	AllData(ctx context.Context) ([]common.DataSetMetaInfo, error)
}

// FileSystem holds the files of the catalog entries
type FileSystem interface {
	Name() string
	// Get returns the local references to the files of the entry, retrieving them if necessary.
	// An entry that cannot be retrieved returns no references and no error.
	Get(ctx context.Context, entry common.DataSetMetaInfo) ([]common.FileRef, error)
	CanPut() bool
	// Scan returns the entries actually present in the file system
	Scan(ctx context.Context) ([]common.DataSetMetaInfo, error)
	// ClearCache removes the files retrieved from a remote location
	ClearCache(ctx context.Context) error
	Descriptor() common.Descriptor
}

// WritableFileSystem is a FileSystem accepting new files
type WritableFileSystem interface {
	FileSystem
	// Put stores the file at sourceURL and returns the entry with its final identifier
	Put(ctx context.Context, sourceURL string, entry common.DataSetMetaInfo) (common.DataSetMetaInfo, error)
	Remove(ctx context.Context, entry common.DataSetMetaInfo) error
}

// NonLocal returns the entries of all that are not in local (by identity), in the order of all
func NonLocal(all, local []common.DataSetMetaInfo) []common.DataSetMetaInfo {
	localKeys := make(map[common.Key]struct{}, len(local))
	for _, l := range local {
		localKeys[l.Key()] = struct{}{}
	}
	nonLocal := []common.DataSetMetaInfo{}
	for _, a := range all {
		if _, ok := localKeys[a.Key()]; !ok {
			nonLocal = append(nonLocal, a)
		}
	}
	return nonLocal
}
