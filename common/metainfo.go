package common

import (
	"fmt"
	"path"
	"strings"
)

// DataSetMetaInfo is a catalog entry, describing one discoverable data product.
// StartTime and EndTime are stored as given, in any precision accepted by the query package.
type DataSetMetaInfo struct {
	Coverage   string `json:"coverage"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	DataType   string `json:"data_type"`
	Identifier string `json:"name"`
}

// Key is the identity of a DataSetMetaInfo
type Key struct {
	DataType   string
	Identifier string
}

// Key returns the (data type, identifier) identity of the entry
func (m DataSetMetaInfo) Key() Key {
	return Key{DataType: m.DataType, Identifier: m.Identifier}
}

// BaseName returns the last element of the identifier
func (m DataSetMetaInfo) BaseName() string {
	return path.Base(strings.TrimRight(m.Identifier, "/"))
}

func (m DataSetMetaInfo) String() string {
	return fmt.Sprintf("%s[%s] (%s - %s)", m.DataType, m.Identifier, m.StartTime, m.EndTime)
}

// ContainsKey returns true if an entry of the list has the same identity as m
func ContainsKey(list []DataSetMetaInfo, m DataSetMetaInfo) bool {
	for _, l := range list {
		if l.Key() == m.Key() {
			return true
		}
	}
	return false
}

// FileRef is a reference to a local file (or byte range) of a catalog entry
type FileRef struct {
	URL       string `json:"url"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	MimeType  string `json:"mime_type"`
}

// NewFileRef creates a FileRef for the given url, with the time range of the entry
func NewFileRef(url string, m DataSetMetaInfo) FileRef {
	return FileRef{URL: url, StartTime: m.StartTime, EndTime: m.EndTime, MimeType: MimeType(url)}
}

// UnknownMimeType is returned by MimeType for an unknown extension
const UnknownMimeType = "unknown mime type"

var mimeTypes = map[string]string{
	".nc":   "application/x-netcdf",
	".nc4":  "application/x-netcdf",
	".hdf":  "application/x-hdf",
	".h5":   "application/x-hdf5",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".tgz":  "application/gzip",
	".json": "application/json",
	".xml":  "application/xml",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".jp2":  "image/jp2",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".txt":  "text/plain",
	".safe": "application/x-directory",
	".sen3": "application/x-directory",
	".dim":  "application/x-dimap",
}

// MimeType returns the mime type of the file given its extension, or UnknownMimeType
func MimeType(file string) string {
	ext := strings.ToLower(path.Ext(strings.TrimRight(file, "/")))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return UnknownMimeType
}

// Descriptor is a serializable description of a provider or a file system,
// sufficient to reconstruct it with the plugin registry
type Descriptor struct {
	Type       string            `json:"type" yaml:"type"`
	Parameters map[string]string `json:"parameters" yaml:"parameters"`
}

// MergeParameters returns a new map with all the parameters, the last ones having priority
func MergeParameters(params ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, p := range params {
		for k, v := range p {
			merged[k] = v
		}
	}
	return merged
}
