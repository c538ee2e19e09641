package common

import (
	"testing"
)

func TestMimeType(t *testing.T) {
	for file, expected := range map[string]string{
		"/data/S2B_MSIL1C_20190108T104429_N0207_R008_T32UNF_20190108T124859.zip":   "application/zip",
		"/data/S2B_MSIL1C_20190108T104429_N0207_R008_T32UNF_20190108T124859.SAFE/": "application/x-directory",
		"/data/era.NC":                  "application/x-netcdf",
		"/data/tile/29/S/QB/2017/9/4/0": UnknownMimeType,
		"readme.xyz":                    UnknownMimeType,
	} {
		if mt := MimeType(file); mt != expected {
			t.Errorf("%s: expect %s found %s", file, expected, mt)
		}
	}
}

func TestKey(t *testing.T) {
	a := DataSetMetaInfo{DataType: "S2_L1C", Identifier: "/data/a.zip", StartTime: "2017"}
	b := DataSetMetaInfo{DataType: "S2_L1C", Identifier: "/data/a.zip", StartTime: "2018"}
	if a.Key() != b.Key() {
		t.Error("expect same key")
	}
	if !ContainsKey([]DataSetMetaInfo{b}, a) {
		t.Error("expect a in list")
	}
	if a.BaseName() != "a.zip" {
		t.Errorf("expect a.zip found %s", a.BaseName())
	}
}

func TestNewFileRef(t *testing.T) {
	ref := NewFileRef("/cache/S2_L1C/a.zip", DataSetMetaInfo{StartTime: "2017-03-01", EndTime: "2017-03-02"})
	if ref.MimeType != "application/zip" || ref.StartTime != "2017-03-01" || ref.EndTime != "2017-03-02" {
		t.Errorf("wrong file ref: %+v", ref)
	}
}

func TestMergeParameters(t *testing.T) {
	m := MergeParameters(map[string]string{"path": "/a", "pattern": "x"}, map[string]string{"path": "/b", "bucket": "c"})
	if len(m) != 3 || m["path"] != "/b" {
		t.Errorf("wrong merge: %v", m)
	}
}
