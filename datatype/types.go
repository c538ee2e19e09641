package datatype

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/query"
)

// Built-in data types
const (
	S1SLC     = "S1_SLC"
	S2L1C     = "S2_L1C"
	S2L2A     = "S2_L2A"
	Landsat89 = "Landsat89"
	AwsS2L1C  = "AWS_S2_L1C"
	PHRDS     = "PHR_DS"
	SPOTDS    = "SPOT_DS"
)

var productExtensions = []string{".zip", ".SAFE", ".tar", ".tar.gz"}

// ProductName returns the name of the product, without its location and its extension
func ProductName(p string) string {
	name := path.Base(strings.TrimRight(p, "/"))
	for _, ext := range productExtensions {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// namedProduct is a data type whose products are identified by their name
type namedProduct struct {
	name  string
	match func(info map[string]string) bool
	c     common.Constellation
}

func (p namedProduct) Name() string {
	return p.name
}

func (p namedProduct) IsValid(path string) bool {
	name := ProductName(path)
	if common.GetConstellationFromProductId(name) != p.c {
		return false
	}
	info, err := common.Info(name)
	if err != nil {
		return false
	}
	return p.match(info)
}

func (p namedProduct) Constellation() common.Constellation {
	return p.c
}

func (p namedProduct) RelativePath(path string) string {
	return ProductName(path)
}

// DiffersByName is true: a product is the same wherever it is stored
func (p namedProduct) DiffersByName() bool {
	return true
}

func (p namedProduct) Extract(path string) (common.DataSetMetaInfo, error) {
	if !p.IsValid(path) {
		return common.DataSetMetaInfo{}, fmt.Errorf("Extract: %s is not a %s product", path, p.name)
	}
	start, end, err := common.GetTimeRangeFromProductId(ProductName(path))
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Extract: %w", err)
	}
	return common.DataSetMetaInfo{
		StartTime:  start.Format(query.TimeLayout),
		EndTime:    end.Format(query.TimeLayout),
		DataType:   p.name,
		Identifier: path,
	}, nil
}

// NewSentinel1SLC creates the Sentinel-1 Single Look Complex data type
func NewSentinel1SLC() Validator {
	return namedProduct{
		name:  S1SLC,
		c:     common.Sentinel1,
		match: func(info map[string]string) bool { return info["PRODUCT_TYPE"] == "SLC" },
	}
}

// NewSentinel2 creates a Sentinel-2 data type of the given processing level (L1C, L2A)
func NewSentinel2(name, level string) Validator {
	return namedProduct{
		name:  name,
		c:     common.Sentinel2,
		match: func(info map[string]string) bool { return info["PRODUCT_LEVEL"] == level },
	}
}

// NewLandsat89 creates the Landsat 8/9 data type
func NewLandsat89() Validator {
	return namedProduct{
		name:  Landsat89,
		c:     common.Landsat89,
		match: func(info map[string]string) bool { return info["DATE"] != "" },
	}
}

// NewPleiades creates the Pleiades dataset (DS_PHR) data type
func NewPleiades() Validator {
	return namedProduct{
		name:  PHRDS,
		c:     common.PHR,
		match: func(info map[string]string) bool { return info["DATE"] != "" },
	}
}

// NewSpot creates the SPOT 6/7 dataset (DS_SPOT) data type
func NewSpot() Validator {
	return namedProduct{
		name:  SPOTDS,
		c:     common.SPOT,
		match: func(info map[string]string) bool { return info["DATE"] != "" },
	}
}

// awsS2 is the Sentinel-2 L1C tile layout of the AWS open-data bucket:
// [...]/tiles/{UTM}/{LATITUDE_BAND}/{GRID_SQUARE}/{YEAR}/{MONTH}/{DAY}/{SEQUENCE}
type awsS2 struct{}

var awsS2Pattern = regexp.MustCompile(`(?:^|/)(\d{1,2}/[C-X]/[A-Z]{2}/(\d{4})/(\d{1,2})/(\d{1,2})/\d+)/?$`)

// NewAwsS2 creates the AWS_S2_L1C data type
func NewAwsS2() Validator {
	return awsS2{}
}

func (awsS2) Name() string {
	return AwsS2L1C
}

func (awsS2) Constellation() common.Constellation {
	return common.Sentinel2
}

func (awsS2) IsValid(path string) bool {
	return awsS2Pattern.MatchString(path)
}

// RelativePath returns the path from the UTM zone to the sequence number
func (awsS2) RelativePath(path string) string {
	if m := awsS2Pattern.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return path
}

func (awsS2) DiffersByName() bool {
	return true
}

func (a awsS2) Extract(path string) (common.DataSetMetaInfo, error) {
	m := awsS2Pattern.FindStringSubmatch(path)
	if m == nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Extract: %s is not a %s product", path, AwsS2L1C)
	}
	date, err := time.Parse("2006-1-2", m[2]+"-"+m[3]+"-"+m[4])
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Extract: %w", err)
	}
	return common.DataSetMetaInfo{
		StartTime:  date.Format("2006-01-02"),
		EndTime:    date.Format("2006-01-02"),
		DataType:   AwsS2L1C,
		Identifier: path,
	}, nil
}
