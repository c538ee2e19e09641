// Package plugin registers all the meta info providers and file systems
// that can be described in a store descriptor.
package plugin

import (
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/interface/catalog/opensearch"
	"github.com/airbusgeo/geocube-datastore/interface/catalog/static"
	"github.com/airbusgeo/geocube-datastore/interface/database/jsonindex"
	"github.com/airbusgeo/geocube-datastore/interface/filesystem/local"
	"github.com/airbusgeo/geocube-datastore/interface/provider"
	"github.com/airbusgeo/geocube-datastore/wrapped"
)

// Register fills r with the constructors of all the backends
func Register(r *datastore.Registry) {
	// Meta info providers
	r.RegisterProvider(jsonindex.TypeName, jsonindex.NewProvider)
	r.RegisterProvider(opensearch.TypeName, wrapped.ProviderConstructor(opensearch.TypeName, opensearch.NewRemote))
	r.RegisterProvider(static.TypeName, wrapped.ProviderConstructor(static.TypeName, static.NewRemote))

	// File systems
	r.RegisterFileSystem(local.TypeName, local.NewFileSystem)
	r.RegisterFileSystem(provider.AwsS3TypeName, wrapped.FileSystemConstructor(provider.AwsS3TypeName, provider.NewAwsS3Remote))
	r.RegisterFileSystem(provider.GSTypeName, wrapped.FileSystemConstructor(provider.GSTypeName, provider.NewGSRemote))
	r.RegisterFileSystem(provider.URLTypeName, wrapped.FileSystemConstructor(provider.URLTypeName, provider.NewURLRemote))
	r.RegisterFileSystem(provider.MundiTypeName, wrapped.FileSystemConstructor(provider.MundiTypeName, provider.NewMundiRemote))
	r.RegisterFileSystem(provider.FTPTypeName, wrapped.FileSystemConstructor(provider.FTPTypeName, provider.NewFTPRemote))
	r.RegisterFileSystem(provider.S3CompatibleTypeName, wrapped.FileSystemConstructor(provider.S3CompatibleTypeName, provider.NewS3CompatibleRemote))
}

// NewRegistry returns a registry of all the backends
func NewRegistry(types *datatype.Registry) *datastore.Registry {
	r := datastore.NewRegistry(types)
	Register(r)
	return r
}
