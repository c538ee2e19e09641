package wrapped

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
)

const (
	nameA = "S2A_MSIL1C_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE"
	nameB = "S2A_MSIL1C_20170304T104021_N0204_R008_T31TCK_20170304T104245.SAFE"
)

func s2Entry(identifier string) common.DataSetMetaInfo {
	return common.DataSetMetaInfo{StartTime: "2017-03-04T10:40:21", EndTime: "2017-03-04T10:40:21", DataType: datatype.S2L1C, Identifier: identifier}
}

// fakeCatalog implements RemoteCatalog
type fakeCatalog struct {
	types   *datatype.Registry
	params  map[string]string
	remote  []common.DataSetMetaInfo
	err     error
	queries int
}

func (c *fakeCatalog) Init(ctx context.Context, params map[string]string) error {
	if params["url"] == "" {
		return service.ErrMissingParameter{Component: "fake", Parameter: "url"}
	}
	c.params = params
	return nil
}

func (c *fakeCatalog) RemoteParams() map[string]string { return c.params }

func (c *fakeCatalog) ProvidedDataTypes() []string { return []string{datatype.S2L1C} }

func (c *fakeCatalog) QueryRemote(ctx context.Context, q query.Query, local []common.DataSetMetaInfo) ([]common.DataSetMetaInfo, error) {
	c.queries++
	if c.err != nil {
		return nil, c.err
	}
	res := []common.DataSetMetaInfo{}
	for _, e := range c.remote {
		if !AlreadyLocal(c.types, local, e) {
			res = append(res, e)
		}
	}
	return res, nil
}

// fakeStorage implements RemoteStorage, creating a SAFE directory with one file
type fakeStorage struct {
	params   map[string]string
	err      error
	fetched  int
	notified []common.DataSetMetaInfo
}

func (s *fakeStorage) Init(ctx context.Context, params map[string]string) error {
	s.params = params
	return nil
}

func (s *fakeStorage) RemoteParams() map[string]string { return s.params }

func (s *fakeStorage) FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, tempDir string) ([]common.FileRef, error) {
	s.fetched++
	if s.err != nil {
		// partial download
		os.WriteFile(filepath.Join(tempDir, "partial"), []byte("..."), 0644)
		return nil, s.err
	}
	dir := filepath.Join(tempDir, entry.BaseName())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.safe"), []byte("manifest"), 0644); err != nil {
		return nil, err
	}
	return []common.FileRef{common.NewFileRef(dir, entry)}, nil
}

func (s *fakeStorage) NotifyFetched(ctx context.Context, entry common.DataSetMetaInfo) {
	s.notified = append(s.notified, entry)
}

func TestWrappedProvider(t *testing.T) {
	ctx := context.Background()
	types := datatype.Default()
	path := filepath.Join(t.TempDir(), "registry.json")
	catalog := &fakeCatalog{types: types, remote: []common.DataSetMetaInfo{s2Entry(nameA), s2Entry(nameB)}}

	if _, err := NewMetaInfoProvider(ctx, "Fake", catalog, map[string]string{"url": "http://x"}, types); err == nil {
		t.Error("expect a missing path_to_json_file")
	}
	if _, err := NewMetaInfoProvider(ctx, "Fake", catalog, map[string]string{ParamPathToJSONFile: path}, types); err == nil {
		t.Error("expect a missing url")
	}

	p, err := NewMetaInfoProvider(ctx, "Fake", catalog, map[string]string{ParamPathToJSONFile: path, "url": "http://x"}, types)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(catalog.params, map[string]string{"url": "http://x"}) {
		t.Errorf("expect only the remote params, found %v", catalog.params)
	}

	cached := s2Entry("/cache/S2_L1C/2017/03/04/" + nameA)
	if err := p.Update(ctx, cached); err != nil {
		t.Fatal(err)
	}

	q := query.MustParse(";2017-03;2017-03;" + datatype.S2L1C)
	all, err := p.Query(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(all, []common.DataSetMetaInfo{cached, s2Entry(nameB)}) {
		t.Errorf("expect local then remote entries, found %v", all)
	}

	queries := catalog.queries
	local, _ := p.QueryLocal(ctx, q)
	if !reflect.DeepEqual(local, []common.DataSetMetaInfo{cached}) {
		t.Errorf("expect the cached entry, found %v", local)
	}
	if catalog.queries != queries {
		t.Error("QueryLocal must not query the remote catalog")
	}

	nonLocal, _ := p.QueryNonLocal(ctx, q)
	if !reflect.DeepEqual(nonLocal, []common.DataSetMetaInfo{s2Entry(nameB)}) {
		t.Errorf("expect the remote entry, found %v", nonLocal)
	}

	catalog.err = errors.New("remote is down")
	all, err = p.Query(ctx, q)
	if err != nil || !reflect.DeepEqual(all, []common.DataSetMetaInfo{cached}) {
		t.Errorf("expect the local entries only, found %v (%v)", all, err)
	}

	expected := common.Descriptor{Type: "Fake", Parameters: map[string]string{ParamPathToJSONFile: path, "url": "http://x"}}
	if !reflect.DeepEqual(p.Descriptor(), expected) {
		t.Errorf("expect %v found %v", expected, p.Descriptor())
	}
	if !p.ProvidesDataType(datatype.S2L1C) || p.ProvidesDataType(datatype.S2L2A) {
		t.Error("wrong provided data types")
	}
}

func TestWrappedFileSystem(t *testing.T) {
	ctx := context.Background()
	types := datatype.Default()
	storage := &fakeStorage{}
	root, tmp := t.TempDir(), t.TempDir()

	if _, err := NewFileSystem(ctx, "Fake", storage, map[string]string{}, types); err == nil {
		t.Error("expect a missing path")
	}
	fs, err := NewFileSystem(ctx, "Fake", storage, map[string]string{ParamPath: root, ParamTempDir: tmp, "bucket": "b"}, types)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(storage.params, map[string]string{"bucket": "b"}) {
		t.Errorf("expect only the remote params, found %v", storage.params)
	}

	entry := s2Entry(nameA)
	refs, err := fs.Get(ctx, entry)
	if err != nil {
		t.Fatal(err)
	}
	expectedPath := filepath.Join(root, "S2_L1C", "2017", "03", "04", nameA)
	if len(refs) != 1 || refs[0].URL != expectedPath {
		t.Errorf("expect %s found %v", expectedPath, refs)
	}
	if _, err := os.Stat(filepath.Join(expectedPath, "manifest.safe")); err != nil {
		t.Error(err)
	}
	if !reflect.DeepEqual(storage.notified, []common.DataSetMetaInfo{entry}) {
		t.Errorf("expect a notification, found %v", storage.notified)
	}

	// cached
	if refs, _ = fs.Get(ctx, entry); len(refs) != 1 || storage.fetched != 1 {
		t.Errorf("expect a cached entry (fetched %d times)", storage.fetched)
	}

	// an entry without date cannot be stored
	refs, err = fs.Get(ctx, common.DataSetMetaInfo{DataType: datatype.S2L1C, Identifier: nameB})
	if err != nil || len(refs) != 0 {
		t.Errorf("expect no refs and no error, found %v (%v)", refs, err)
	}

	// remote failure
	storage.err = service.MakeTemporary(errors.New("timeout"))
	refs, err = fs.Get(ctx, s2Entry(nameB))
	if err != nil || len(refs) != 0 {
		t.Errorf("expect no refs and no error, found %v (%v)", refs, err)
	}
	if len(storage.notified) != 1 {
		t.Error("expect no notification on failure")
	}
	if matches, _ := filepath.Glob(filepath.Join(tmp, "*")); len(matches) != 0 {
		t.Errorf("expect no temporary files, found %v", matches)
	}
	scanned, _ := fs.Scan(ctx)
	if len(scanned) != 1 || scanned[0].Identifier != expectedPath {
		t.Errorf("expect only %s found %v", expectedPath, scanned)
	}

	expected := common.Descriptor{Type: "Fake", Parameters: map[string]string{ParamPath: root, ParamTempDir: tmp, "bucket": "b"}}
	if !reflect.DeepEqual(fs.Descriptor(), expected) {
		t.Errorf("expect %v found %v", expected, fs.Descriptor())
	}

	if err := fs.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	if scanned, _ = fs.Scan(ctx); len(scanned) != 0 {
		t.Errorf("expect an empty cache, found %v", scanned)
	}
}

func TestWrappedDataStore(t *testing.T) {
	ctx := context.Background()
	types := datatype.Default()
	dir := t.TempDir()
	catalog := &fakeCatalog{types: types, remote: []common.DataSetMetaInfo{s2Entry(nameA), s2Entry(nameB)}}
	storage := &fakeStorage{}

	p, err := NewMetaInfoProvider(ctx, "Fake", catalog, map[string]string{ParamPathToJSONFile: filepath.Join(dir, "registry.json"), "url": "http://x"}, types)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := NewFileSystem(ctx, "Fake", storage, map[string]string{ParamPath: filepath.Join(dir, "cache")}, types)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := datastore.NewWritable("fake", fs, p, types)
	if err != nil {
		t.Fatal(err)
	}

	q := ";2017-03;2017-03;" + datatype.S2L1C
	nonLocal, err := ds.QueryNonLocal(ctx, q)
	if err != nil || len(nonLocal) != 2 {
		t.Fatalf("expect 2 non local entries found %v (%v)", nonLocal, err)
	}
	refs, err := ds.Get(ctx, nonLocal[0])
	if err != nil || len(refs) != 1 {
		t.Fatalf("expect 1 ref found %v (%v)", refs, err)
	}

	// the fetched entry is local as soon as it is retrieved
	local, _ := ds.QueryLocal(ctx, q)
	if len(local) != 1 || local[0].BaseName() != nameA || local[0].Identifier != refs[0].URL {
		t.Errorf("expect %s found %v", refs[0].URL, local)
	}
	nonLocal, _ = ds.QueryNonLocal(ctx, q)
	if len(nonLocal) != 1 || nonLocal[0].Identifier != nameB {
		t.Errorf("expect %s found %v", nameB, nonLocal)
	}

	// a second retrieval does not register it twice
	if _, err := ds.Get(ctx, local[0]); err != nil {
		t.Fatal(err)
	}
	if all, _ := p.AllData(ctx); len(all) != 1 {
		t.Errorf("expect 1 registered entry found %v", all)
	}
	if _, err := ds.Get(ctx, nonLocal[0]); err != nil {
		t.Fatal(err)
	}
	if all, _ := p.AllData(ctx); len(all) != 2 {
		t.Errorf("expect 2 registered entries found %v", all)
	}

	// the reconciliation finds the registry up to date
	registered, _ := p.AllData(ctx)
	if err := ds.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if all, _ := p.AllData(ctx); !reflect.DeepEqual(all, registered) {
		t.Errorf("expect %v found %v", registered, all)
	}
	local, _ = ds.QueryLocal(ctx, q)
	if len(local) != 2 {
		t.Errorf("expect 2 local entries found %v", local)
	}

	if err := ds.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	if local, _ = ds.QueryLocal(ctx, q); len(local) != 0 {
		t.Errorf("expect an empty cache, found %v", local)
	}
	os.RemoveAll(fs.TempDir())
}
