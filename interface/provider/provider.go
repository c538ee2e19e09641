// Package provider implements the remote storages of the wrapped file systems.
//
// The location of a product is configured with a pattern whose {KEY}s are replaced by
// the information extracted from the name of the product (see common.Info) and by:
//   - {DATA_TYPE}: the data type of the entry
//   - {NAME}: the name of the product, without its location and its extension
//   - {RELATIVE_PATH}: the relative path of the entry (see datatype.Validator)
package provider

import (
	"context"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
)

// Parameters shared by several storages
const (
	ParamUsername  = "username"
	ParamPassword  = "password"
	ParamUnarchive = "unarchive"
)

// PatternInfo returns the values of the keys that can be used in a pattern
func PatternInfo(types *datatype.Registry, entry common.DataSetMetaInfo) map[string]string {
	name := datatype.ProductName(entry.Identifier)
	info, err := common.Info(name)
	if err != nil {
		info = map[string]string{}
	}
	if _, ok := info["SCENE"]; !ok {
		info["SCENE"] = name
	}
	info["DATA_TYPE"] = entry.DataType
	info["NAME"] = name
	info["RELATIVE_PATH"] = types.RelativePath(entry.DataType, entry.Identifier)
	return info
}

// remote holds the parameters of a storage
type remote struct {
	name   string
	params map[string]string
}

func (r *remote) init(name string, params map[string]string, required ...string) error {
	for _, p := range required {
		if params[p] == "" {
			return service.ErrMissingParameter{Component: name, Parameter: p}
		}
	}
	r.name = name
	r.params = common.MergeParameters(params)
	return nil
}

func (r *remote) param(key, def string) string {
	if v, ok := r.params[key]; ok && v != "" {
		return v
	}
	return def
}

func (r *remote) RemoteParams() map[string]string {
	return common.MergeParameters(r.params)
}

func (r *remote) NotifyFetched(ctx context.Context, entry common.DataSetMetaInfo) {
	log.Logger(ctx).Sugar().Debugf("[%s] %s fetched", r.name, entry.Identifier)
}
