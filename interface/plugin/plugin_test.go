package plugin_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/interface/plugin"
	"github.com/airbusgeo/geocube-datastore/service"
)

func TestRegister(t *testing.T) {
	r := plugin.NewRegistry(datatype.Default())

	expected := []string{"JsonMetaInfoProvider", "OpenSearchMetaInfoProvider", "StaticMetaInfoProvider"}
	if found := r.ProviderTypes(); !reflect.DeepEqual(found, expected) {
		t.Errorf("expect providers %v, found %v", expected, found)
	}
	expected = []string{"AwsS3FileSystem", "FtpFileSystem", "GoogleStorageFileSystem", "HttpFileSystem", "LocalFileSystem", "MundiFileSystem", "S3CompatibleFileSystem"}
	if found := r.FileSystemTypes(); !reflect.DeepEqual(found, expected) {
		t.Errorf("expect file systems %v, found %v", expected, found)
	}
}

func TestNewDataStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := plugin.NewRegistry(datatype.Default())

	d := datastore.StoreDescriptor{
		ID: "local",
		FileSystem: common.Descriptor{Type: "LocalFileSystem", Parameters: map[string]string{
			"path": filepath.Join(dir, "local"),
		}},
		MetaInfoProvider: common.Descriptor{Type: "JsonMetaInfoProvider", Parameters: map[string]string{
			"path_to_json_file":    filepath.Join(dir, "local.json"),
			"supported_data_types": datatype.S2L1C,
		}},
	}
	ds, err := r.NewDataStore(ctx, d)
	if err != nil {
		t.Fatalf("NewDataStore: %v", err)
	}
	if !ds.MetaInfoProvider().ProvidesDataType(datatype.S2L1C) {
		t.Errorf("expect %s to be provided", datatype.S2L1C)
	}
	if !ds.FileSystem().CanPut() {
		t.Errorf("expect a writable file system")
	}

	// The descriptor of the store creates the same store again
	ds2, err := r.NewDataStore(ctx, ds.Descriptor())
	if err != nil {
		t.Fatalf("NewDataStore(Descriptor): %v", err)
	}
	if !reflect.DeepEqual(ds2.Descriptor(), ds.Descriptor()) {
		t.Errorf("expect %v, found %v", ds.Descriptor(), ds2.Descriptor())
	}
}

func TestNewWrappedDataStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := plugin.NewRegistry(datatype.Default())

	d := datastore.StoreDescriptor{
		ID: "http",
		FileSystem: common.Descriptor{Type: "HttpFileSystem", Parameters: map[string]string{
			"path":        filepath.Join(dir, "cache"),
			"temp_dir":    filepath.Join(dir, "tmp"),
			"url_pattern": "http://localhost/{SCENE}.zip",
		}},
		MetaInfoProvider: common.Descriptor{Type: "StaticMetaInfoProvider", Parameters: map[string]string{
			"path_to_json_file": filepath.Join(dir, "static.json"),
			"data_types":        datatype.S2L1C + "," + datatype.S2L2A,
		}},
	}
	ds, err := r.NewDataStore(ctx, d)
	if err != nil {
		t.Fatalf("NewDataStore: %v", err)
	}
	if types := ds.MetaInfoProvider().ProvidedDataTypes(); !reflect.DeepEqual(types, []string{datatype.S2L1C, datatype.S2L2A}) {
		t.Errorf("expect [%s %s], found %v", datatype.S2L1C, datatype.S2L2A, types)
	}
	desc := ds.Descriptor()
	if desc.FileSystem.Type != "HttpFileSystem" || desc.FileSystem.Parameters["url_pattern"] != "http://localhost/{SCENE}.zip" {
		t.Errorf("unexpected file system descriptor: %v", desc.FileSystem)
	}
}

func TestNewDataStoreErrors(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry(datatype.Default())

	_, err := r.NewDataStore(ctx, datastore.StoreDescriptor{
		ID:               "unknown",
		FileSystem:       common.Descriptor{Type: "NoSuchFileSystem"},
		MetaInfoProvider: common.Descriptor{Type: "JsonMetaInfoProvider"},
	})
	var unknown service.ErrUnknownType
	if !errors.As(err, &unknown) || unknown.Type != "NoSuchFileSystem" {
		t.Errorf("expect ErrUnknownType, found %v", err)
	}

	_, err = r.NewDataStore(ctx, datastore.StoreDescriptor{
		ID:               "missing",
		FileSystem:       common.Descriptor{Type: "FtpFileSystem", Parameters: map[string]string{"path": t.TempDir()}},
		MetaInfoProvider: common.Descriptor{Type: "JsonMetaInfoProvider"},
	})
	var missing service.ErrMissingParameter
	if !errors.As(err, &missing) || missing.Parameter != "url_pattern" {
		t.Errorf("expect ErrMissingParameter(url_pattern), found %v", err)
	}
}
