package wrapped

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/interface/filesystem/local"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/google/uuid"
)

// Parameters consumed by the wrapped file system
const (
	ParamPath    = local.ParamPath
	ParamPattern = local.ParamPattern
	ParamTempDir = "temp_dir"
)

// FileSystem caches the files of a remote storage in a local file system
type FileSystem struct {
	typeName string
	local    *local.FileSystem
	remote   RemoteStorage
	tempDir  string
	params   map[string]string
}

// NewFileSystem creates a file system caching the remote files under the directory given by the
// parameter path, organized with the parameter pattern. The remote files are downloaded in temp_dir
// (default: a new directory in the temporary directory of the OS). The other parameters are passed
// to remote.Init.
func NewFileSystem(ctx context.Context, typeName string, remote RemoteStorage, params map[string]string, types *datatype.Registry) (*FileSystem, error) {
	wrapperParams, remoteParams := split(params, ParamPath, ParamPattern, ParamTempDir)
	if wrapperParams[ParamPath] == "" {
		return nil, service.ErrMissingParameter{Component: typeName, Parameter: ParamPath}
	}
	localFS, err := local.New(wrapperParams[ParamPath], wrapperParams[ParamPattern], false, types)
	if err != nil {
		return nil, fmt.Errorf("%s.%w", typeName, err)
	}
	tempDir := wrapperParams[ParamTempDir]
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), uuid.New().String())
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("%s.MkdirAll: %w", typeName, err)
	}
	if err := remote.Init(ctx, remoteParams); err != nil {
		return nil, fmt.Errorf("%s.Init: %w", typeName, err)
	}
	return &FileSystem{typeName: typeName, local: localFS, remote: remote, tempDir: tempDir, params: wrapperParams}, nil
}

// FileSystemConstructor returns the constructor of the wrapped file systems of the given type
func FileSystemConstructor(typeName string, newRemote func(types *datatype.Registry) RemoteStorage) datastore.FileSystemConstructor {
	return func(ctx context.Context, params map[string]string, types *datatype.Registry) (datastore.FileSystem, error) {
		return NewFileSystem(ctx, typeName, newRemote(types), params, types)
	}
}

func (fs *FileSystem) Name() string {
	return fs.typeName
}

// Remote returns the remote storage
func (fs *FileSystem) Remote() RemoteStorage {
	return fs.remote
}

// TempDir returns the directory where the remote files are downloaded
func (fs *FileSystem) TempDir() string {
	return fs.tempDir
}

// Get returns the local files of the entry, fetching them from the remote storage if they are not cached.
// If the remote storage fails to provide them, no files are returned and the error is logged.
func (fs *FileSystem) Get(ctx context.Context, entry common.DataSetMetaInfo) ([]common.FileRef, error) {
	refs, err := fs.local.Get(ctx, entry)
	if err != nil || len(refs) > 0 {
		return refs, err
	}
	if err := fs.fetch(ctx, entry); err != nil {
		if service.Fatal(err) {
			log.Logger(ctx).Sugar().Errorf("%s: unable to fetch %s: %v", fs.typeName, entry.Identifier, err)
			return nil, nil
		}
		log.Logger(ctx).Sugar().Warnf("%s: unable to fetch %s (temporary: %v): %v", fs.typeName, entry.Identifier, service.Temporary(err), err)
		return nil, nil
	}
	return fs.local.Get(ctx, entry)
}

// fetch downloads the files of the entry in a new temporary directory and stores them locally
func (fs *FileSystem) fetch(ctx context.Context, entry common.DataSetMetaInfo) error {
	tmp, err := os.MkdirTemp(fs.tempDir, "fetch-")
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("fetch.MkdirTemp: %w", err))
	}
	defer os.RemoveAll(tmp)

	log.Logger(ctx).Sugar().Infof("%s: fetching %s", fs.typeName, entry.Identifier)
	fetched, err := fs.remote.FetchRemote(ctx, entry, tmp)
	if err != nil {
		return fmt.Errorf("fetch.%w", err)
	}
	if len(fetched) == 0 {
		return service.ErrProductNotFound{Product: entry.Identifier}
	}

	src := fetched[0].URL
	if len(fetched) > 1 {
		// Several files: gather them in one directory
		src = filepath.Join(tmp, uuid.New().String())
		if err := os.MkdirAll(src, 0755); err != nil {
			return fmt.Errorf("fetch.MkdirAll: %w", err)
		}
		for _, f := range fetched {
			if err := os.Rename(f.URL, filepath.Join(src, filepath.Base(f.URL))); err != nil {
				return fmt.Errorf("fetch.Rename: %w", err)
			}
		}
	}
	// Put is atomic: the entry is not present locally until all its files are stored
	if _, err := fs.local.Put(ctx, src, entry); err != nil {
		return fmt.Errorf("fetch.%w", err)
	}
	fs.remote.NotifyFetched(ctx, entry)
	return nil
}

func (fs *FileSystem) CanPut() bool {
	return fs.local.CanPut()
}

func (fs *FileSystem) Put(ctx context.Context, sourceURL string, entry common.DataSetMetaInfo) (common.DataSetMetaInfo, error) {
	return fs.local.Put(ctx, sourceURL, entry)
}

func (fs *FileSystem) Remove(ctx context.Context, entry common.DataSetMetaInfo) error {
	return fs.local.Remove(ctx, entry)
}

// Scan returns the entries cached locally
func (fs *FileSystem) Scan(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	return fs.local.Scan(ctx)
}

// ClearCache removes all the cached entries and the temporary files
func (fs *FileSystem) ClearCache(ctx context.Context) error {
	entries, err := fs.local.Scan(ctx)
	if err != nil {
		return fmt.Errorf("ClearCache.%w", err)
	}
	for _, e := range entries {
		if rerr := fs.local.Remove(ctx, e); rerr != nil {
			log.Logger(ctx).Sugar().Warnf("%s: unable to remove %s: %v", fs.typeName, e.Identifier, rerr)
			err = service.MergeErrors(true, err, rerr)
		}
	}
	if e := os.RemoveAll(fs.tempDir); e != nil {
		err = service.MergeErrors(true, err, e)
	} else if e := os.MkdirAll(fs.tempDir, 0755); e != nil {
		err = service.MergeErrors(true, err, e)
	}
	if err != nil {
		return fmt.Errorf("ClearCache: %w", err)
	}
	return nil
}

// Descriptor merges the parameters of the wrapper and of the remote storage
func (fs *FileSystem) Descriptor() common.Descriptor {
	params := common.MergeParameters(fs.params, fs.remote.RemoteParams())
	params[ParamPath] = fs.local.Root()
	params[ParamTempDir] = fs.tempDir
	return common.Descriptor{Type: fs.typeName, Parameters: params}
}
