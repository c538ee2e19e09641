// Package query implements the catalog query language:
//
//	<WKT polygon>;<start>;<end>;<comma-separated data types>
//
// Every field may be empty. An empty region of interest is the whole globe, an empty start is
// MinTime and an empty end is MaxTime. Timestamps may be partial (year, month, day): a partial
// start is expanded to the first instant of the period and a partial end to its last instant.
package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/geometry"
	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom"
)

const (
	fieldSeparator = ";"
	typeSeparator  = ","
	nbFields       = 4
	// TimeLayout is the layout used to serialize the timestamps
	TimeLayout = "2006-01-02T15:04:05"
)

var (
	// MinTime is the earliest representable instant
	MinTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	// MaxTime is the latest representable instant
	MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// Query is a parsed catalog query
type Query struct {
	ROI       geom.Polygon
	Start     time.Time
	End       time.Time
	DataTypes []string
}

// Parse parses a query string. It never returns a partially-parsed query.
func Parse(s string) (Query, error) {
	fields := strings.Split(s, fieldSeparator)
	if len(fields) != nbFields {
		return Query{}, service.ErrMalformedQuery{Query: s, Reason: fmt.Sprintf("expecting %d fields separated by '%s', found %d", nbFields, fieldSeparator, len(fields))}
	}

	roiWKT := strings.TrimSpace(fields[0])
	if roiWKT == "" {
		roiWKT = geometry.GlobeWKT
	}
	roi, err := geometry.DecodePolygon(roiWKT)
	if err != nil {
		return Query{}, service.ErrMalformedQuery{Query: s, Reason: err.Error(), InvalidValue: true}
	}

	start, end := MinTime, MaxTime
	if f := strings.TrimSpace(fields[1]); f != "" {
		if start, err = StartOf(f); err != nil {
			return Query{}, service.ErrMalformedQuery{Query: s, Reason: err.Error(), InvalidValue: true}
		}
	}
	if f := strings.TrimSpace(fields[2]); f != "" {
		if end, err = EndOf(f); err != nil {
			return Query{}, service.ErrMalformedQuery{Query: s, Reason: err.Error(), InvalidValue: true}
		}
	}

	return Query{
		ROI:       roi,
		Start:     start,
		End:       end,
		DataTypes: service.SplitList(fields[3]),
	}, nil
}

// MustParse is like Parse but panics on error
func MustParse(s string) Query {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Serialize returns the query string of q
func Serialize(q Query) string {
	roi := geometry.GlobeWKT
	if len(q.ROI) != 0 {
		if wkt, err := geometry.EncodePolygon(q.ROI); err == nil {
			roi = wkt
		}
	}
	return strings.Join([]string{
		roi,
		q.Start.Format(TimeLayout),
		q.End.Format(TimeLayout),
		strings.Join(q.DataTypes, typeSeparator),
	}, fieldSeparator)
}

func (q Query) String() string {
	return Serialize(q)
}

// ROIWKT returns the region of interest as WKT
func (q Query) ROIWKT() string {
	if len(q.ROI) == 0 {
		return geometry.GlobeWKT
	}
	wkt, err := geometry.EncodePolygon(q.ROI)
	if err != nil {
		return geometry.GlobeWKT
	}
	return wkt
}

// HasDataType returns true if the data type is requested by the query
func (q Query) HasDataType(dataType string) bool {
	for _, t := range q.DataTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

// WithDataTypes returns a copy of the query requesting the given data types
func (q Query) WithDataTypes(dataTypes ...string) Query {
	q.DataTypes = append([]string(nil), dataTypes...)
	return q
}

// Equal returns true if both queries are the same
func (q Query) Equal(o Query) bool {
	return q.Start.Equal(o.Start) && q.End.Equal(o.End) &&
		reflect.DeepEqual(q.ROI, o.ROI) &&
		len(q.DataTypes) == len(o.DataTypes) && (len(q.DataTypes) == 0 || reflect.DeepEqual(q.DataTypes, o.DataTypes))
}

// Overlaps returns true if [start, end] overlaps the time window of the query
func (q Query) Overlaps(start, end time.Time) bool {
	return !start.After(q.End) && !end.Before(q.Start)
}

type precision int

const (
	year precision = iota
	month
	day
	second
)

var layouts = []struct {
	layout    string
	precision precision
}{
	{"2006", year},
	{"2006-01", month},
	{"2006-01-02", day},
	{"2006-01-02 15:04:05", second},
	{"2006-01-02T15:04:05", second},
}

// parse parses a (possibly partial) timestamp and returns its precision
func parse(s string) (time.Time, precision, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if len(s) != len(l.layout) {
			continue
		}
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t, l.precision, nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, second, fmt.Errorf("unable to parse timestamp '%s': %w", s, err)
	}
	// Timestamps are serialized to the second
	return t.UTC().Truncate(time.Second), precisionOf(s), nil
}

// precisionOf guesses the precision of a timestamp that is not in one of the standard layouts:
// a timestamp without time of day is a year, a month or a day, depending on its number of fields
// (2017-3, 2017/03/04, March 2017) or on its length (201703, 20170304).
func precisionOf(s string) precision {
	if strings.Contains(s, ":") {
		return second
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	switch len(fields) {
	case 1:
		switch len(fields[0]) {
		case 4:
			return year
		case 6:
			return month
		case 8:
			return day
		}
	case 2:
		return month
	case 3:
		return day
	}
	return second
}

// StartOf parses the timestamp as a start bound (first instant of the period)
func StartOf(s string) (time.Time, error) {
	t, _, err := parse(s)
	return t, err
}

// EndOf parses the timestamp as an end bound (last instant of the period)
func EndOf(s string) (time.Time, error) {
	t, p, err := parse(s)
	if err != nil {
		return t, err
	}
	switch p {
	case year:
		return time.Date(t.Year(), time.December, 31, 23, 59, 59, 0, time.UTC), nil
	case month:
		return time.Date(t.Year(), t.Month(), DaysInMonth(t.Year(), t.Month()), 23, 59, 59, 0, time.UTC), nil
	case day:
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC), nil
	}
	return t, nil
}

// IsLeapYear implements the Gregorian leap-year rule
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days of the month
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}
