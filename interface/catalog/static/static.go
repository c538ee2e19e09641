// Package static is a remote catalog without remote entries: the provider only answers with the
// entries registered locally, for the configured data types.
package static

import (
	"context"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/wrapped"
)

const (
	TypeName       = "StaticMetaInfoProvider"
	ParamDataTypes = "data_types"
)

type Catalog struct {
	dataTypes []string
}

// NewRemote is a constructor for wrapped.ProviderConstructor
func NewRemote(*datatype.Registry) wrapped.RemoteCatalog {
	return &Catalog{}
}

func (c *Catalog) Init(ctx context.Context, params map[string]string) error {
	if c.dataTypes = service.SplitList(params[ParamDataTypes]); len(c.dataTypes) == 0 {
		return service.ErrMissingParameter{Component: TypeName, Parameter: ParamDataTypes}
	}
	return nil
}

func (c *Catalog) RemoteParams() map[string]string {
	return map[string]string{ParamDataTypes: strings.Join(c.dataTypes, ",")}
}

func (c *Catalog) ProvidedDataTypes() []string {
	return append([]string(nil), c.dataTypes...)
}

func (c *Catalog) QueryRemote(ctx context.Context, q query.Query, local []common.DataSetMetaInfo) ([]common.DataSetMetaInfo, error) {
	return []common.DataSetMetaInfo{}, nil
}
