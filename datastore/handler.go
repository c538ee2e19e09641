package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/geometry"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/go-spatial/geom"
	"github.com/gorilla/mux"
)

// NewHandler exposes the federation over HTTP
func (f *Federation) NewHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/stores", f.ListStoresHandler).Methods("GET")
	r.HandleFunc("/datatypes", f.ListDataTypesHandler).Methods("GET")
	r.HandleFunc("/query", f.QueryHandler).Methods("GET")
	r.HandleFunc("/query/local", f.QueryHandler).Methods("GET")
	r.HandleFunc("/query/nonlocal", f.QueryHandler).Methods("GET")
	r.HandleFunc("/get", f.GetHandler).Methods("POST")
	r.HandleFunc("/update", f.UpdateHandler).Methods("PUT")
	r.HandleFunc("/stores/{store}", f.DescriptorHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/query", f.QueryHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/query/local", f.QueryHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/query/nonlocal", f.QueryHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/get", f.GetHandler).Methods("POST")
	r.HandleFunc("/stores/{store}/put", f.PutHandler).Methods("POST")
	r.HandleFunc("/stores/{store}/update", f.UpdateHandler).Methods("PUT")
	r.HandleFunc("/stores/{store}/clearcache", f.ClearCacheHandler).Methods("PUT")
	return r
}

// writeError writes the status code corresponding to the error
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var malformed service.ErrMalformedQuery
	switch {
	case errors.As(err, &malformed):
		w.WriteHeader(http.StatusBadRequest)
	case service.IsRejected(err):
		w.WriteHeader(http.StatusForbidden)
	default:
		log.Logger(ctx).Sugar().Warnf("%v", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
	fmt.Fprintf(w, "%v", err)
}

// store returns the store of the request or nil if the route is not bound to a store.
// It writes 404 if the store does not exist.
func (f *Federation) store(w http.ResponseWriter, req *http.Request) (s *DataStore, ok bool) {
	id, bound := mux.Vars(req)["store"]
	if !bound {
		return nil, true
	}
	if s, ok = f.Store(id); !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "store %s not found", id)
	}
	return s, ok
}

// QueryString returns the query of the request: either the parameter q or the concatenation
// of the parameters roi (WKT or GeoJSON), start, end and types
func QueryString(req *http.Request) (string, error) {
	if q := req.FormValue("q"); q != "" {
		return q, nil
	}
	roi := strings.TrimSpace(req.FormValue("roi"))
	if strings.HasPrefix(roi, "{") {
		g, err := service.UnmarshalGeometry([]byte(roi))
		if err != nil {
			return "", service.ErrMalformedQuery{Query: roi, Reason: err.Error(), InvalidValue: true}
		}
		var p geom.Polygon
		switch g := g.(type) {
		case geom.Polygon:
			p = g
		case geom.MultiPolygon:
			if len(g) != 1 {
				return "", service.ErrMalformedQuery{Query: roi, Reason: "expecting a single polygon", InvalidValue: true}
			}
			p = geom.Polygon(g[0])
		default:
			return "", service.ErrMalformedQuery{Query: roi, Reason: "expecting a polygon", InvalidValue: true}
		}
		if roi, err = geometry.EncodePolygon(p); err != nil {
			return "", service.ErrMalformedQuery{Query: roi, Reason: err.Error(), InvalidValue: true}
		}
	}
	return strings.Join([]string{roi, req.FormValue("start"), req.FormValue("end"), req.FormValue("types")}, ";"), nil
}

// ListStoresHandler lists the identifiers of the stores
func (f *Federation) ListStoresHandler(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(f.IDs())
}

// ListDataTypesHandler lists the data types provided by the federation,
// optionally those of a constellation (?constellation=sentinel-2)
func (f *Federation) ListDataTypesHandler(w http.ResponseWriter, req *http.Request) {
	if c := req.FormValue("constellation"); c != "" {
		json.NewEncoder(w).Encode(f.DataTypesOfConstellation(c))
		return
	}
	json.NewEncoder(w).Encode(f.DataTypes())
}

// DescriptorHandler returns the descriptor of a store
func (f *Federation) DescriptorHandler(w http.ResponseWriter, req *http.Request) {
	s, ok := f.store(w, req)
	if !ok {
		return
	}
	json.NewEncoder(w).Encode(s.Descriptor())
}

// QueryHandler runs Query, QueryLocal or QueryNonLocal (depending on the route)
// on one store or on the whole federation
func (f *Federation) QueryHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s, ok := f.store(w, req)
	if !ok {
		return
	}
	q, err := QueryString(req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	local := strings.HasSuffix(req.URL.Path, "/local")
	nonLocal := strings.HasSuffix(req.URL.Path, "/nonlocal")

	if s != nil {
		var entries []common.DataSetMetaInfo
		switch {
		case local:
			entries, err = s.QueryLocal(ctx, q)
		case nonLocal:
			entries, err = s.QueryNonLocal(ctx, q)
		default:
			entries, err = s.Query(ctx, q)
		}
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		json.NewEncoder(w).Encode(entries)
		return
	}

	var results map[string][]common.DataSetMetaInfo
	switch {
	case local:
		results, err = f.QueryLocal(ctx, q)
	case nonLocal:
		results, err = f.QueryNonLocal(ctx, q)
	default:
		results, err = f.Query(ctx, q)
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	json.NewEncoder(w).Encode(results)
}

// GetHandler retrieves the entries of the body (json list of meta info).
// The references are keyed by store identifier.
func (f *Federation) GetHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s, ok := f.store(w, req)
	if !ok {
		return
	}
	var entries []common.DataSetMetaInfo
	if err := json.NewDecoder(req.Body).Decode(&entries); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "invalid body: %v", err)
		return
	}
	target := f
	if s != nil {
		target = &Federation{stores: map[string]*DataStore{s.ID(): s}}
	}
	refs, err := target.Get(ctx, entries...)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	json.NewEncoder(w).Encode(refs)
}

// PutHandler stores the file given by the parameter url
func (f *Federation) PutHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s, ok := f.store(w, req)
	if !ok {
		return
	}
	url := req.FormValue("url")
	if url == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "missing parameter url")
		return
	}
	entry, err := s.Put(ctx, url)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// UpdateHandler reconciles one store or the whole federation
func (f *Federation) UpdateHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s, ok := f.store(w, req)
	if !ok {
		return
	}
	var err error
	if s != nil {
		err = s.Update(ctx)
	} else {
		err = f.Update(ctx)
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCacheHandler removes the files retrieved by a store
func (f *Federation) ClearCacheHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s, ok := f.store(w, req)
	if !ok {
		return
	}
	if err := s.ClearCache(ctx); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
