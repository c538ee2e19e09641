package datatype

import (
	"sync"

	"github.com/airbusgeo/geocube-datastore/common"
)

// Validator recognizes the products of a data type
type Validator interface {
	// Name of the data type
	Name() string
	// IsValid returns true if the path (or url) is a product of this data type
	IsValid(path string) bool
	// RelativePath returns the part of the path that identifies the product whatever its location
	RelativePath(path string) string
	// DiffersByName is true if two products at different locations may be the same product,
	// i.e. equality must be evaluated on the relative path instead of the identifier
	DiffersByName() bool
}

// ConstellationProduct is a data type of products acquired by a constellation of satellites
type ConstellationProduct interface {
	Constellation() common.Constellation
}

// Extractor derives a catalog entry from a product reference
type Extractor interface {
	Extract(path string) (common.DataSetMetaInfo, error)
}

// Registry holds the validators and extractors of the known data types.
// A nil *Registry knows no data type.
type Registry struct {
	mu         sync.RWMutex
	names      []string
	validators map[string]Validator
	extractors map[string]Extractor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		validators: map[string]Validator{},
		extractors: map[string]Extractor{},
	}
}

// Default creates a registry with the built-in data types
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewSentinel1SLC())
	r.Register(NewSentinel2(S2L1C, "L1C"))
	r.Register(NewSentinel2(S2L2A, "L2A"))
	r.Register(NewLandsat89())
	r.Register(NewAwsS2())
	r.Register(NewPleiades())
	r.Register(NewSpot())
	return r
}

// Register adds the validator. If it is also an Extractor, it is registered as the extractor of its data type.
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.validators[v.Name()]; !ok {
		r.names = append(r.names, v.Name())
	}
	r.validators[v.Name()] = v
	if e, ok := v.(Extractor); ok {
		r.extractors[v.Name()] = e
	}
}

// RegisterExtractor sets the extractor of a data type
func (r *Registry) RegisterExtractor(dataType string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[dataType] = e
}

// Validator returns the validator of the data type
func (r *Registry) Validator(dataType string) (Validator, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[dataType]
	return v, ok
}

// Extractor returns the extractor of the data type
func (r *Registry) Extractor(dataType string) (Extractor, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[dataType]
	return e, ok
}

// Names returns the registered data types, in registration order
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// DataTypeOf returns the first registered data type recognizing the path
func (r *Registry) DataTypeOf(path string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.names {
		if r.validators[name].IsValid(path) {
			return name, true
		}
	}
	return "", false
}

// DataTypesOfConstellation returns the registered data types of the constellation given by the user
// (e.g. "sentinel-2", "pleiades", or a product name), in registration order
func (r *Registry) DataTypesOfConstellation(input string) []string {
	c := common.GetConstellationFromString(input)
	if r == nil || c == common.Unknown {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.names {
		if v, ok := r.validators[name].(ConstellationProduct); ok && v.Constellation() == c {
			names = append(names, name)
		}
	}
	return names
}

// IsValid returns true if the path is a product of the data type
func (r *Registry) IsValid(dataType, path string) bool {
	v, ok := r.Validator(dataType)
	return ok && v.IsValid(path)
}

// Extract derives the catalog entry of a product of the given data type
func (r *Registry) Extract(dataType, path string) (common.DataSetMetaInfo, bool, error) {
	e, ok := r.Extractor(dataType)
	if !ok {
		return common.DataSetMetaInfo{}, false, nil
	}
	m, err := e.Extract(path)
	return m, true, err
}

// DiffersByName returns true if the entries of this data type are compared on their relative path
func (r *Registry) DiffersByName(dataType string) bool {
	v, ok := r.Validator(dataType)
	return ok && v.DiffersByName()
}

// RelativePath returns the identifier used to compare entries of this data type.
// Without a validator declaring DiffersByName, it is the identifier itself.
func (r *Registry) RelativePath(dataType, identifier string) string {
	if v, ok := r.Validator(dataType); ok && v.DiffersByName() {
		return v.RelativePath(identifier)
	}
	return identifier
}

// EqualExceptDataType compares the coverage, the time range and the identifiers of the entries
func (r *Registry) EqualExceptDataType(a, b common.DataSetMetaInfo) bool {
	if a.Coverage != b.Coverage || a.StartTime != b.StartTime || a.EndTime != b.EndTime {
		return false
	}
	if a.Identifier == b.Identifier {
		return true
	}
	return r.RelativePath(a.DataType, a.Identifier) == r.RelativePath(b.DataType, b.Identifier)
}

// Equal compares the entries, taking into account the relative path of the data types that differ by name
func (r *Registry) Equal(a, b common.DataSetMetaInfo) bool {
	return a.DataType == b.DataType && r.EqualExceptDataType(a, b)
}

// Contains returns true if the list contains an entry equal to m
func (r *Registry) Contains(list []common.DataSetMetaInfo, m common.DataSetMetaInfo) bool {
	for _, l := range list {
		if r.Equal(l, m) {
			return true
		}
	}
	return false
}
