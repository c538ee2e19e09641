package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"golang.org/x/sync/errgroup"
)

// Federation dispatches the requests over several independent data stores, concurrently
type Federation struct {
	stores map[string]*DataStore
}

// NewFederation creates a federation of stores. Their identifiers must be unique.
func NewFederation(stores ...*DataStore) (*Federation, error) {
	f := &Federation{stores: map[string]*DataStore{}}
	for _, s := range stores {
		if err := f.Add(s); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Add a store to the federation
func (f *Federation) Add(s *DataStore) error {
	if _, ok := f.stores[s.ID()]; ok {
		return fmt.Errorf("Federation.Add: store %s already exists", s.ID())
	}
	f.stores[s.ID()] = s
	return nil
}

// Store returns the store with the given identifier
func (f *Federation) Store(id string) (*DataStore, bool) {
	s, ok := f.stores[id]
	return s, ok
}

// IDs returns the sorted identifiers of the stores
func (f *Federation) IDs() []string {
	ids := make([]string, 0, len(f.stores))
	for id := range f.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DataTypes returns the sorted data types provided by at least one store
func (f *Federation) DataTypes() []string {
	set := service.NewStringSet()
	for _, s := range f.stores {
		for _, dataType := range s.MetaInfoProvider().ProvidedDataTypes() {
			set.Push(dataType)
		}
	}
	return set.Slice()
}

// DataTypesOfConstellation returns the sorted data types of the constellation (e.g. "sentinel-2")
// provided by at least one store
func (f *Federation) DataTypesOfConstellation(constellation string) []string {
	set := service.NewStringSet()
	for _, s := range f.stores {
		for _, dataType := range s.types.DataTypesOfConstellation(constellation) {
			if s.MetaInfoProvider().ProvidesDataType(dataType) {
				set.Push(dataType)
			}
		}
	}
	return set.Slice()
}

type queryFunc func(s *DataStore, ctx context.Context, q string) ([]common.DataSetMetaInfo, error)

// fanOut runs the query on every store, one goroutine per store
func (f *Federation) fanOut(ctx context.Context, q string, fn queryFunc) (map[string][]common.DataSetMetaInfo, error) {
	// Fail fast on a malformed query rather than once per store
	if _, err := query.Parse(q); err != nil {
		return nil, err
	}
	var mu sync.Mutex
	results := make(map[string][]common.DataSetMetaInfo, len(f.stores))
	g, gctx := errgroup.WithContext(ctx)
	for id, s := range f.stores {
		g.Go(func() error {
			entries, err := fn(s, log.With(gctx, "store", id), q)
			if err != nil {
				return fmt.Errorf("store %s: %w", id, err)
			}
			mu.Lock()
			defer mu.Unlock()
			results[id] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Federation.%w", err)
	}
	return results, nil
}

// Query runs the query on all the stores; the results are keyed by store identifier
func (f *Federation) Query(ctx context.Context, q string) (map[string][]common.DataSetMetaInfo, error) {
	return f.fanOut(ctx, q, (*DataStore).Query)
}

// QueryLocal runs QueryLocal on all the stores
func (f *Federation) QueryLocal(ctx context.Context, q string) (map[string][]common.DataSetMetaInfo, error) {
	return f.fanOut(ctx, q, (*DataStore).QueryLocal)
}

// QueryNonLocal runs QueryNonLocal on all the stores
func (f *Federation) QueryNonLocal(ctx context.Context, q string) (map[string][]common.DataSetMetaInfo, error) {
	return f.fanOut(ctx, q, (*DataStore).QueryNonLocal)
}

// Get retrieves the entries, each one from the stores providing its data type.
// The references are keyed by store identifier. A failure is logged and does not discard
// the other references. An error is returned only if every store failed.
func (f *Federation) Get(ctx context.Context, entries ...common.DataSetMetaInfo) (map[string][]common.FileRef, error) {
	var mu sync.Mutex
	var err error
	var nbFailures int
	refs := map[string][]common.FileRef{}
	var g errgroup.Group
	for id, s := range f.stores {
		g.Go(func() error {
			sctx := log.With(ctx, "store", id)
			failed := false
			for _, e := range entries {
				r, gerr := s.Get(sctx, e)
				mu.Lock()
				if gerr != nil {
					log.Logger(sctx).Sugar().Errorf("%v", gerr)
					err = service.MergeErrors(true, err, fmt.Errorf("store %s: %w", id, gerr))
					failed = true
				} else {
					refs[id] = append(refs[id], r...)
				}
				mu.Unlock()
			}
			if failed {
				mu.Lock()
				nbFailures++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	if len(f.stores) > 0 && nbFailures == len(f.stores) {
		return nil, fmt.Errorf("Federation.Get: %w", err)
	}
	for id, r := range refs {
		if len(r) == 0 {
			delete(refs, id)
		}
	}
	return refs, nil
}

// Update reconciles all the stores whose registry is updateable. A failing store does not stop the others.
func (f *Federation) Update(ctx context.Context) error {
	var g errgroup.Group
	for id, s := range f.stores {
		g.Go(func() error {
			sctx := log.With(ctx, "store", id)
			if err := s.Update(sctx); err != nil {
				if service.IsRejected(err) {
					log.Logger(sctx).Sugar().Debugf("%v", err)
					return nil
				}
				return fmt.Errorf("store %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
