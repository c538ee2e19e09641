package geometry

import (
	"fmt"
	"runtime"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// GlobeWKT is the whole-globe rectangle
const GlobeWKT = "POLYGON ((-180 -90,180 -90,180 90,-180 90,-180 -90))"

// Area is a region of interest prepared for repeated intersection tests
type Area struct {
	geometry *geos.Geometry
	prepared *geos.PGeometry
}

// NewArea parses the wkt and prepares it
func NewArea(wkt string) (*Area, error) {
	g, err := geos.FromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("NewArea.FromWKT: %w", err)
	}
	return &Area{geometry: g, prepared: g.Prepare()}, nil
}

// Intersects returns true if the wkt geometry intersects the area
func (a *Area) Intersects(wkt string) (bool, error) {
	g, err := geos.FromWKT(wkt)
	if err != nil {
		return false, fmt.Errorf("Intersects.FromWKT: %w", err)
	}
	intersect, err := a.prepared.Intersects(g)
	if err != nil {
		return false, fmt.Errorf("Intersects: %w", err)
	}
	runtime.KeepAlive(a.geometry)
	return intersect, nil
}

// DecodePolygon decodes a WKT that must be a polygon
func DecodePolygon(wkt string) (geom.Polygon, error) {
	g, err := geomwkt.DecodeString(wkt)
	if err != nil {
		return nil, fmt.Errorf("DecodePolygon: %w", err)
	}
	switch p := g.(type) {
	case geom.Polygon:
		return p, nil
	case *geom.Polygon:
		if p != nil {
			return *p, nil
		}
	}
	return nil, fmt.Errorf("DecodePolygon: expecting a polygon, got %T", g)
}

// EncodePolygon returns the WKT of the polygon
func EncodePolygon(p geom.Polygon) (string, error) {
	wkt, err := geomwkt.EncodeString(p)
	if err != nil {
		return "", fmt.Errorf("EncodePolygon: %w", err)
	}
	return wkt, nil
}
