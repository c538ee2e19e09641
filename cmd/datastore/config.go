package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"go.yaml.in/yaml/v3"
)

// storesFile is the YAML file describing the stores of the federation:
//
//	stores:
//	  - id: sentinel2
//	    file_system:
//	      type: LocalFileSystem
//	      parameters: {path: /data/s2}
//	    meta_info_provider:
//	      type: JsonMetaInfoProvider
//	      parameters: {path_to_json_file: /data/s2.json, supported_data_types: S2_L1C}
type storesFile struct {
	Stores []datastore.StoreDescriptor `yaml:"stores"`
}

func readStoresFile(r io.Reader) ([]datastore.StoreDescriptor, error) {
	var f storesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("readStoresFile: %w", err)
	}
	return f.Stores, nil
}

// loadFederation creates all the stores described in the file
func loadFederation(ctx context.Context, registry *datastore.Registry, path string) (*datastore.Federation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadFederation: %w", err)
	}
	defer file.Close()
	descriptors, err := readStoresFile(file)
	if err != nil {
		return nil, fmt.Errorf("loadFederation[%s].%w", path, err)
	}

	federation, _ := datastore.NewFederation()
	for _, d := range descriptors {
		ds, err := registry.NewDataStore(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("loadFederation.%w", err)
		}
		if err := federation.Add(ds); err != nil {
			return nil, err
		}
		log.Logger(ctx).Sugar().Infof("store %s: %s, %s", d.ID, d.FileSystem.Type, d.MetaInfoProvider.Type)
	}
	return federation, nil
}
