// Package geospatial holds the geometry primitives shared by
// internal/shapefile and internal/districtassign: GeoJSON decode/encode,
// point-in-ring containment, great-circle distance and closest-boundary
// distance. It generalizes the conversion style of the shapefile-to-geom
// adapters in the pack (go-shp geometries fed into geom.T constructors) into
// a GeoJSON-to-models.DistrictMap decoder, since the service's shapefile
// store hands back GeoJSON columns rather than raw shapefiles at query time.
package geospatial

import (
	"fmt"

	"github.com/nysage/atlas/internal/models"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DecodeGeoJSON decodes a GeoJSON Polygon or MultiPolygon byte payload into a
// models.DistrictMap. The wire coordinate order is (lon, lat); the returned
// rings are stored in the internal (lat, lon) order.
func DecodeGeoJSON(data []byte) (models.DistrictMap, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return models.DistrictMap{}, fmt.Errorf("geospatial: decode geojson: %w", err)
	}

	switch t := g.(type) {
	case *geom.Polygon:
		return models.DistrictMap{GeometryType: "Polygon", Polygons: polygonRings(t)}, nil
	case *geom.MultiPolygon:
		var rings []models.Ring
		for i := 0; i < t.NumPolygons(); i++ {
			rings = append(rings, polygonRings(t.Polygon(i))...)
		}
		return models.DistrictMap{GeometryType: "MultiPolygon", Polygons: rings}, nil
	default:
		return models.DistrictMap{}, fmt.Errorf("geospatial: unsupported geometry type %T", g)
	}
}

// polygonRings flattens every linear ring of a geom.Polygon (exterior plus
// holes) into the internal []Ring representation, lon/lat swapped to lat/lon.
func polygonRings(p *geom.Polygon) []models.Ring {
	rings := make([]models.Ring, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		lr := p.LinearRing(i)
		flat := lr.FlatCoords()
		ring := make(models.Ring, 0, len(flat)/2)
		for j := 0; j+1 < len(flat); j += 2 {
			ring = append(ring, models.LatLon{Lat: flat[j+1], Lon: flat[j]})
		}
		rings = append(rings, ring)
	}
	return rings
}

// EncodeGeoJSON is the inverse of DecodeGeoJSON, used when the service needs
// to hand a map back out over HTTP in the wire (lon, lat) order.
func EncodeGeoJSON(m models.DistrictMap) ([]byte, error) {
	if len(m.Polygons) == 0 {
		return nil, fmt.Errorf("geospatial: cannot encode empty district map")
	}

	poly := geom.NewPolygon(geom.XY)
	for _, ring := range m.Polygons {
		flat := make([]float64, 0, len(ring)*2)
		for _, p := range ring {
			flat = append(flat, p.Lon, p.Lat)
		}
		lr := geom.NewLinearRingFlat(geom.XY, flat)
		if err := poly.Push(lr); err != nil {
			return nil, fmt.Errorf("geospatial: encode geojson: %w", err)
		}
	}

	data, err := geojson.Marshal(poly)
	if err != nil {
		return nil, fmt.Errorf("geospatial: marshal geojson: %w", err)
	}
	return data, nil
}
