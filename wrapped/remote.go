// Package wrapped composes a local registry and a local file system with a remote backend.
// The resulting MetaInfoProvider and FileSystem behave like a cache-through proxy: queries are
// answered by the local registry first then completed by the remote catalog; files are fetched
// from the remote storage on a local miss.
package wrapped

import (
	"context"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
)

// Remote is a remote backend, configured with the parameters that are not consumed by the wrapper
type Remote interface {
	// Init configures the backend. A missing required parameter returns a service.ErrMissingParameter.
	Init(ctx context.Context, params map[string]string) error
	// RemoteParams returns the parameters needed to configure the backend again
	RemoteParams() map[string]string
}

// RemoteCatalog is a remote backend answering catalog queries
type RemoteCatalog interface {
	Remote
	ProvidedDataTypes() []string
	// QueryRemote returns the remote entries matching the query that are not in local
	QueryRemote(ctx context.Context, q query.Query, local []common.DataSetMetaInfo) ([]common.DataSetMetaInfo, error)
}

// RemoteStorage is a remote backend holding the files of the entries
type RemoteStorage interface {
	Remote
	// FetchRemote downloads the files of the entry into tempDir and returns their references.
	FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, tempDir string) ([]common.FileRef, error)
	// NotifyFetched is called once all the fetched files have been stored locally
	NotifyFetched(ctx context.Context, entry common.DataSetMetaInfo)
}

// AlreadyLocal returns true if e is already in local, by identity or because
// an entry of local has the same relative path (see datatype.Validator)
func AlreadyLocal(types *datatype.Registry, local []common.DataSetMetaInfo, e common.DataSetMetaInfo) bool {
	for _, l := range local {
		if l.Key() == e.Key() {
			return true
		}
		if l.DataType == e.DataType && types.DiffersByName(e.DataType) &&
			types.RelativePath(l.DataType, l.Identifier) == types.RelativePath(e.DataType, e.Identifier) {
			return true
		}
	}
	return false
}

// split separates the parameters consumed by the wrapper from the ones of the remote backend
func split(params map[string]string, wrapperKeys ...string) (wrapper, remote map[string]string) {
	wrapper, remote = map[string]string{}, map[string]string{}
	for k, v := range params {
		remote[k] = v
	}
	for _, k := range wrapperKeys {
		if v, ok := remote[k]; ok {
			wrapper[k] = v
			delete(remote, k)
		}
	}
	return wrapper, remote
}
