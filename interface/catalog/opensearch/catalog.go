package opensearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/airbusgeo/geocube-datastore/wrapped"
)

const (
	TypeName = "OpenSearchMetaInfoProvider"

	// ParamURL is the search endpoint. {DATA_TYPE} is replaced by the collection of the data type.
	ParamURL = "url"
	// ParamDataTypes is the comma-separated list of the provided data types
	ParamDataTypes = "data_types"
	// ParamCollections maps the data types to the collections of the catalog: "S2_L1C=Sentinel2,..."
	ParamCollections = "collections"
	// ParamMaxRecords is the maximum number of entries returned by a query for each data type
	ParamMaxRecords = "max_records"
	// ParamPageSize is the maximum number of records per page of the catalog
	ParamPageSize = "page_size"
	// ParamExtra is appended to the search parameters (e.g. "productType=S2MSI1C")
	ParamExtra = "extra_parameters"
	// Credentials of the catalog (optional)
	ParamUsername = "username"
	ParamPassword = "password"
	ParamToken    = "token"

	defaultMaxRecords = 500
	defaultPageSize   = 100
)

// Catalog is a remote catalog implementing the OpenSearch (resto) API
type Catalog struct {
	types       *datatype.Registry
	params      map[string]string
	url         string
	dataTypes   []string
	collections map[string]string
	extra       string
	auth        Auth
	maxRecords  int
	pageSize    int
}

// New creates a catalog that must be initialized with Init
func New(types *datatype.Registry) *Catalog {
	return &Catalog{types: types}
}

// NewRemote is a constructor for wrapped.ProviderConstructor
func NewRemote(types *datatype.Registry) wrapped.RemoteCatalog {
	return New(types)
}

func (c *Catalog) Init(ctx context.Context, params map[string]string) error {
	if c.url = params[ParamURL]; c.url == "" {
		return service.ErrMissingParameter{Component: TypeName, Parameter: ParamURL}
	}
	if c.dataTypes = service.SplitList(params[ParamDataTypes]); len(c.dataTypes) == 0 {
		return service.ErrMissingParameter{Component: TypeName, Parameter: ParamDataTypes}
	}
	c.collections = map[string]string{}
	for _, kv := range service.SplitList(params[ParamCollections]) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("Init: invalid %s: %s", ParamCollections, kv)
		}
		c.collections[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	var err error
	if c.maxRecords, err = intParam(params, ParamMaxRecords, defaultMaxRecords); err != nil {
		return fmt.Errorf("Init.%w", err)
	}
	if c.pageSize, err = intParam(params, ParamPageSize, defaultPageSize); err != nil {
		return fmt.Errorf("Init.%w", err)
	}
	c.extra = params[ParamExtra]
	c.auth = Auth{Username: params[ParamUsername], Password: params[ParamPassword], Token: params[ParamToken]}
	c.params = common.MergeParameters(params)
	log.Logger(ctx).Sugar().Debugf("[OpenSearch] %s provides %v", c.url, c.dataTypes)
	return nil
}

func intParam(params map[string]string, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return 0, fmt.Errorf("intParam: invalid %s: %s", key, v)
	}
	return i, nil
}

func (c *Catalog) RemoteParams() map[string]string {
	return common.MergeParameters(c.params)
}

func (c *Catalog) ProvidedDataTypes() []string {
	return append([]string(nil), c.dataTypes...)
}

// SearchURL returns the search endpoint of the data type
func (c *Catalog) SearchURL(dataType string) string {
	collection, ok := c.collections[dataType]
	if !ok {
		collection = dataType
	}
	return common.FormatBrackets(c.url, map[string]string{"DATA_TYPE": collection})
}

// QueryRemote queries the catalog for each provided data type requested by q,
// skipping the entries that are already in local
func (c *Catalog) QueryRemote(ctx context.Context, q query.Query, local []common.DataSetMetaInfo) ([]common.DataSetMetaInfo, error) {
	entries := []common.DataSetMetaInfo{}
	for _, dataType := range c.dataTypes {
		if !q.HasDataType(dataType) {
			continue
		}
		hits, err := Query(ctx, c.SearchURL(dataType), ConstructQuery(q, c.extra), c.maxRecords, c.pageSize, c.auth)
		if err != nil {
			return nil, fmt.Errorf("QueryRemote[%s].%w", dataType, err)
		}
		for _, e := range Parse(ctx, dataType, hits) {
			if !wrapped.AlreadyLocal(c.types, local, e) {
				entries = append(entries, e)
			}
		}
	}
	return entries, nil
}
