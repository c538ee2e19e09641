// Package jsonindex implements an updateable MetaInfoProvider whose registry is a JSON document:
//
//	{"supported_data_types": "S2_L1C,S2_L2A", "data_sets": [{"coverage": ..., "start_time": ..., "end_time": ..., "data_type": ..., "name": ...}]}
//
// The document is loaded at opening and rewritten after each modification.
package jsonindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/geometry"
	"github.com/airbusgeo/geocube-datastore/service/log"
)

// TypeName is the name of the provider in the plugin registry
const TypeName = "JsonMetaInfoProvider"

// Parameters
const (
	ParamPath               = "path_to_json_file"
	ParamSupportedDataTypes = "supported_data_types"
)

type document struct {
	SupportedDataTypes string                   `json:"supported_data_types"`
	DataSets           []common.DataSetMetaInfo `json:"data_sets"`
}

// Registry is a MetaInfoProvider backed by a JSON file
type Registry struct {
	mu             sync.RWMutex
	path           string
	supportedTypes []string
	entries        []common.DataSetMetaInfo
}

// Open loads the registry stored in the file, creating it if it does not exist.
// If supportedDataTypes is empty, the supported data types of the file are used.
func Open(ctx context.Context, path string, supportedDataTypes []string) (*Registry, error) {
	r := &Registry{path: path, supportedTypes: supportedDataTypes, entries: []common.DataSetMetaInfo{}}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("Open.MkdirAll: %w", err)
		}
		if err := r.persist(); err != nil {
			return nil, fmt.Errorf("Open.%w", err)
		}
		log.Logger(ctx).Sugar().Debugf("registry %s created", path)
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("Open.ReadFile: %w", err)
	}

	var doc document
	if len(strings.TrimSpace(string(b))) > 0 {
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("Open.Unmarshal[%s]: %w", path, err)
		}
	}
	if doc.DataSets != nil {
		r.entries = doc.DataSets
	}
	if len(r.supportedTypes) == 0 {
		r.supportedTypes = service.SplitList(doc.SupportedDataTypes)
	}
	return r, nil
}

// NewProvider creates a Registry from its parameters (see ParamXXX)
func NewProvider(ctx context.Context, params map[string]string, types *datatype.Registry) (datastore.MetaInfoProvider, error) {
	path := params[ParamPath]
	if path == "" {
		return nil, service.ErrMissingParameter{Component: TypeName, Parameter: ParamPath}
	}
	return Open(ctx, path, service.SplitList(params[ParamSupportedDataTypes]))
}

// persist writes the registry in a temporary file then renames it.
// The caller must hold the write lock (or be the only owner of the registry).
func (r *Registry) persist() error {
	b, err := json.MarshalIndent(document{
		SupportedDataTypes: strings.Join(r.supportedTypes, ","),
		DataSets:           r.entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("persist.Marshal: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist.CreateTemp: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("persist.Write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persist.Close: %w", err)
	}
	if err := os.Rename(f.Name(), r.path); err != nil {
		return fmt.Errorf("persist.Rename: %w", err)
	}
	return nil
}

// Path of the JSON file
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) Name() string {
	return TypeName
}

// Query returns the entries matching the query, in the order of the file
func (r *Registry) Query(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error) {
	return r.QueryLocal(ctx, q)
}

// QueryLocal returns the entries whose data type is requested, whose coverage intersects the
// region of interest and whose time range overlaps the time window of the query.
// An entry without coverage intersects any region of interest.
func (r *Registry) QueryLocal(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error) {
	res := []common.DataSetMetaInfo{}
	if len(q.DataTypes) == 0 {
		return res, nil
	}
	roi, err := geometry.NewArea(q.ROIWKT())
	if err != nil {
		return nil, fmt.Errorf("QueryLocal.%w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if !q.HasDataType(e.DataType) {
			continue
		}
		if e.Coverage != "" {
			intersects, err := roi.Intersects(e.Coverage)
			if err != nil {
				log.Logger(ctx).Sugar().Warnf("%s: skip %s: %v", r.path, e.Identifier, err)
				continue
			}
			if !intersects {
				continue
			}
		}
		start, end, err := timeRange(e)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("%s: skip %s: %v", r.path, e.Identifier, err)
			continue
		}
		if q.Overlaps(start, end) {
			res = append(res, e)
		}
	}
	return res, nil
}

// QueryNonLocal returns nothing: all the entries of the registry are local
func (r *Registry) QueryNonLocal(ctx context.Context, q query.Query) ([]common.DataSetMetaInfo, error) {
	return []common.DataSetMetaInfo{}, nil
}

func (r *Registry) ProvidesDataType(dataType string) bool {
	for _, t := range r.supportedTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

func (r *Registry) ProvidedDataTypes() []string {
	return append([]string(nil), r.supportedTypes...)
}

func (r *Registry) EncapsulatesDataType(dataType string) bool {
	return false
}

func (r *Registry) NotifyRetrieved(ctx context.Context, entry common.DataSetMetaInfo) {}

func (r *Registry) Descriptor() common.Descriptor {
	return common.Descriptor{
		Type: TypeName,
		Parameters: map[string]string{
			ParamPath:               r.path,
			ParamSupportedDataTypes: strings.Join(r.supportedTypes, ","),
		},
	}
}

// Update appends the entry to the registry and persists it.
// The registry does not check whether the entry already exists.
func (r *Registry) Update(ctx context.Context, entry common.DataSetMetaInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if err := r.persist(); err != nil {
		r.entries = r.entries[:len(r.entries)-1]
		return fmt.Errorf("Update.%w", err)
	}
	return nil
}

// Remove deletes the first entry with the same identity and persists the registry.
// Removing an unknown entry is not an error.
func (r *Registry) Remove(ctx context.Context, entry common.DataSetMetaInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Key() != entry.Key() {
			continue
		}
		previous := r.entries
		r.entries = append(append([]common.DataSetMetaInfo{}, r.entries[:i]...), r.entries[i+1:]...)
		if err := r.persist(); err != nil {
			r.entries = previous
			return fmt.Errorf("Remove.%w", err)
		}
		return nil
	}
	return nil
}

// AllData returns a copy of all the entries
func (r *Registry) AllData(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]common.DataSetMetaInfo{}, r.entries...), nil
}

func timeRange(e common.DataSetMetaInfo) (start, end time.Time, err error) {
	start, end = query.MinTime, query.MaxTime
	if e.StartTime != "" {
		if start, err = query.StartOf(e.StartTime); err != nil {
			return
		}
	}
	if e.EndTime != "" {
		end, err = query.EndOf(e.EndTime)
	}
	return
}
