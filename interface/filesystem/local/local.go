package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/cavaliercoder/grab"
	"github.com/google/uuid"
)

// TypeName is the name of the file system in the plugin registry
const TypeName = "LocalFileSystem"

// Parameters
const (
	ParamPath     = "path"
	ParamPattern  = "pattern"
	ParamReadOnly = "read_only"
)

// DefaultPattern organizes the products by data type and acquisition day
const DefaultPattern = "{DATA_TYPE}/{YEAR}/{MONTH}/{DAY}"

const tmpMarker = ".tmp-"

// FileSystem stores the products in a local directory, under <path>/<pattern>/<name>
type FileSystem struct {
	root     string
	pattern  string
	readOnly bool
	types    *datatype.Registry
}

// New creates a local FileSystem rooted at root. An empty pattern is DefaultPattern.
func New(root, pattern string, readOnly bool, types *datatype.Registry) (*FileSystem, error) {
	if root == "" {
		return nil, service.ErrMissingParameter{Component: TypeName, Parameter: ParamPath}
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("New.Abs: %w", err)
	}
	if !readOnly {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("New.MkdirAll: %w", err)
		}
	}
	return &FileSystem{root: root, pattern: pattern, readOnly: readOnly, types: types}, nil
}

// NewFileSystem creates a local FileSystem from its parameters (see ParamXXX)
func NewFileSystem(ctx context.Context, params map[string]string, types *datatype.Registry) (datastore.FileSystem, error) {
	readOnly := false
	if v := params[ParamReadOnly]; v != "" {
		var err error
		if readOnly, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%s: invalid parameter %s=%s: %w", TypeName, ParamReadOnly, v, err)
		}
	}
	return New(params[ParamPath], params[ParamPattern], readOnly, types)
}

func (l *FileSystem) Name() string {
	return TypeName
}

// Root directory of the file system
func (l *FileSystem) Root() string {
	return l.root
}

// Path returns the local path of the entry
func (l *FileSystem) Path(entry common.DataSetMetaInfo) (string, error) {
	start, err := query.StartOf(entry.StartTime)
	if err != nil {
		return "", fmt.Errorf("Path[%s]: %w", entry.Identifier, err)
	}
	dir := common.FormatBrackets(l.pattern, map[string]string{
		"DATA_TYPE": entry.DataType,
		"YEAR":      fmt.Sprintf("%04d", start.Year()),
		"MONTH":     fmt.Sprintf("%02d", start.Month()),
		"DAY":       fmt.Sprintf("%02d", start.Day()),
	})
	return filepath.Join(l.root, dir, l.localName(entry)), nil
}

// localName is the base name of the entry, or its relative path if it has several components
// (products whose base name is not unique, e.g. AWS tiles)
func (l *FileSystem) localName(entry common.DataSetMetaInfo) string {
	if rel := l.types.RelativePath(entry.DataType, entry.Identifier); rel != entry.Identifier && strings.Contains(rel, "/") {
		return filepath.FromSlash(rel)
	}
	return entry.BaseName()
}

// candidates returns the paths where the entry may be stored: its computed path, if any, and its identifier
func (l *FileSystem) candidates(ctx context.Context, entry common.DataSetMetaInfo) []string {
	p, err := l.Path(entry)
	if err != nil {
		log.Logger(ctx).Sugar().Debugf("%s: %v", TypeName, err)
		return []string{entry.Identifier}
	}
	return []string{p, entry.Identifier}
}

// Get returns the reference of the local file or directory of the entry, if it exists
func (l *FileSystem) Get(ctx context.Context, entry common.DataSetMetaInfo) ([]common.FileRef, error) {
	for _, candidate := range l.candidates(ctx, entry) {
		if !l.contains(candidate) {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return []common.FileRef{common.NewFileRef(candidate, entry)}, nil
		}
	}
	return nil, nil
}

// contains returns true if p is strictly inside the root directory
func (l *FileSystem) contains(p string) bool {
	rel, err := filepath.Rel(l.root, p)
	return err == nil && filepath.IsAbs(p) && rel != "." && !strings.HasPrefix(rel, "..")
}

func (l *FileSystem) CanPut() bool {
	return !l.readOnly
}

// Put copies (or downloads) the file or directory at sourceURL to the local path of the entry.
// The copy is done under a temporary name, then renamed.
func (l *FileSystem) Put(ctx context.Context, sourceURL string, entry common.DataSetMetaInfo) (common.DataSetMetaInfo, error) {
	if l.readOnly {
		return entry, service.ErrRejected{Reason: fmt.Sprintf("%s %s is read-only", TypeName, l.root)}
	}
	dst, err := l.Path(entry)
	if err != nil {
		return entry, fmt.Errorf("Put.%w", err)
	}
	if _, err := os.Stat(dst); err == nil {
		log.Logger(ctx).Sugar().Debugf("%s already exists", dst)
		entry.Identifier = dst
		return entry, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return entry, fmt.Errorf("Put.MkdirAll: %w", err)
	}

	tmp := dst + tmpMarker + uuid.New().String()
	defer os.RemoveAll(tmp)
	if strings.HasPrefix(sourceURL, "http://") || strings.HasPrefix(sourceURL, "https://") {
		err = download(ctx, sourceURL, tmp)
	} else {
		err = copyPath(strings.TrimPrefix(sourceURL, "file://"), tmp)
	}
	if err != nil {
		return entry, fmt.Errorf("Put[%s].%w", sourceURL, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return entry, fmt.Errorf("Put.Rename: %w", err)
	}
	entry.Identifier = dst
	return entry, nil
}

// Remove deletes the local file or directory of the entry. A missing entry is not an error.
func (l *FileSystem) Remove(ctx context.Context, entry common.DataSetMetaInfo) error {
	if l.readOnly {
		return service.ErrRejected{Reason: fmt.Sprintf("%s %s is read-only", TypeName, l.root)}
	}
	for _, candidate := range l.candidates(ctx, entry) {
		if l.contains(candidate) {
			if err := os.RemoveAll(candidate); err != nil {
				return fmt.Errorf("Remove: %w", err)
			}
		}
	}
	return nil
}

// Scan walks the file system and extracts an entry from every product of a known data type
func (l *FileSystem) Scan(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	entries := []common.DataSetMetaInfo{}
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == l.root {
				return fs.SkipAll
			}
			return err
		}
		if p == l.root {
			return nil
		}
		if strings.Contains(d.Name(), tmpMarker) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		dataType, ok := l.types.DataTypeOf(filepath.ToSlash(p))
		if !ok {
			return nil
		}
		entry, ok, err := l.types.Extract(dataType, p)
		switch {
		case !ok:
			log.Logger(ctx).Sugar().Debugf("%s: no extractor for %s", p, dataType)
		case err != nil:
			log.Logger(ctx).Sugar().Warnf("%s: %v", p, err)
		default:
			entries = append(entries, entry)
		}
		if d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Scan[%s]: %w", l.root, err)
	}
	return entries, nil
}

// ClearCache does nothing: the local files are not a cache
func (l *FileSystem) ClearCache(ctx context.Context) error {
	return nil
}

func (l *FileSystem) Descriptor() common.Descriptor {
	return common.Descriptor{
		Type: TypeName,
		Parameters: map[string]string{
			ParamPath:     l.root,
			ParamPattern:  l.pattern,
			ParamReadOnly: strconv.FormatBool(l.readOnly),
		},
	}
}

// download the url to the local file dst
func download(ctx context.Context, url, dst string) error {
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return fmt.Errorf("download.NewRequest: %w", err)
	}
	resp := grab.NewClient().Do(req.WithContext(ctx))
	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download: %w", err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 408, 429, 500, 502, 503, 504:
			return service.MakeTemporary(err)
		}
		return err
	}
	return nil
}

// copyPath copies a file or a directory recursively
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("copyPath: %w", err)
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copyFile: %w", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("copyFile: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copyFile[%s]: %w", src, err)
	}
	return out.Close()
}
