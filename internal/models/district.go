package models

import "strings"

// DistrictType enumerates the political/administrative district kinds the
// service resolves. Values are stable strings so they serialize directly
// into JSON responses and SQL table-name lookups.
type DistrictType string

const (
	DistrictSenate        DistrictType = "SENATE"
	DistrictAssembly      DistrictType = "ASSEMBLY"
	DistrictCongressional DistrictType = "CONGRESSIONAL"
	DistrictCounty        DistrictType = "COUNTY"
	DistrictSchool        DistrictType = "SCHOOL"
	DistrictTown          DistrictType = "TOWN"
	DistrictElection      DistrictType = "ELECTION"
	DistrictFire          DistrictType = "FIRE"
	DistrictVillage       DistrictType = "VILLAGE"
	DistrictCity          DistrictType = "CITY"
	DistrictZip           DistrictType = "ZIP"
)

// AllDistrictTypes is the canonical set of district types a full
// assignment request may ask for.
var AllDistrictTypes = []DistrictType{
	DistrictSenate, DistrictAssembly, DistrictCongressional, DistrictCounty,
	DistrictSchool, DistrictTown, DistrictElection, DistrictFire,
	DistrictVillage, DistrictCity, DistrictZip,
}

// GloballyUniqueCoded reports whether codes of this type are unique across
// the whole state, i.e. whether the type is eligible for the process-wide
// code->map cache (§4.3 item 5). SCHOOL district codes repeat across
// counties and so are excluded; their maps are fetched on demand instead.
func (t DistrictType) GloballyUniqueCoded() bool {
	return t != DistrictSchool
}

// LatLon is a single (lat, lon) point, using the internal (lat, lon) axis
// order (the wire GeoJSON order is (lon, lat) and is translated at decode
// time — see internal/geospatial).
type LatLon struct {
	Lat float64
	Lon float64
}

// Ring is a closed polygon ring.
type Ring []LatLon

// DistrictMap is a geometry-type tag plus an ordered list of polygon rings,
// with optional metadata identifying which district it belongs to.
type DistrictMap struct {
	GeometryType string // "Polygon" or "MultiPolygon"
	Polygons     []Ring
	Metadata     *DistrictMetadata
}

// DistrictMetadata is a data copy, not an ownership back-reference — see
// Design Notes on "cyclic metadata": DistrictMap.Metadata never points back
// into the cache it came from.
type DistrictMetadata struct {
	Type DistrictType
	Name string
	Code string
}

// DistrictOverlap is the area (in square meters) of intersection between a
// set of target districts and the union of a reference district set.
type DistrictOverlap struct {
	ReferenceType   DistrictType
	TargetType      DistrictType
	ReferenceCodes  []string
	TotalAreaMeters float64
	TargetAreas     map[string]float64 // target code -> intersected area
	TargetGeometry  map[string]DistrictMap
}

// DistrictEntry is one row of a DistrictInfo: the resolved name/code for a
// single DistrictType, plus optional map and proximity-to-boundary.
type DistrictEntry struct {
	Type             DistrictType
	Name             string
	Code             string
	Map              *DistrictMap
	ProximityMeters  float64
	HasProximity     bool
	Overlap          *DistrictOverlap
}

// DistrictInfo is the full set of district assignments produced for one
// geocoded address.
type DistrictInfo struct {
	Entries            map[DistrictType]*DistrictEntry
	UncertainDistricts map[DistrictType]bool
}

// NewDistrictInfo returns an empty, ready-to-populate DistrictInfo.
func NewDistrictInfo() *DistrictInfo {
	return &DistrictInfo{
		Entries:            make(map[DistrictType]*DistrictEntry),
		UncertainDistricts: make(map[DistrictType]bool),
	}
}

// AssignedDistricts returns the subset of DistrictType with a non-empty
// code.
func (di *DistrictInfo) AssignedDistricts() []DistrictType {
	var out []DistrictType
	for t, e := range di.Entries {
		if e != nil && e.Code != "" {
			out = append(out, t)
		}
	}
	return out
}

// MatchLevel is the precision achieved by district assignment.
type MatchLevel string

const (
	MatchNone   MatchLevel = "NOMATCH"
	MatchCity   MatchLevel = "CITY"
	MatchZip5   MatchLevel = "ZIP5"
	MatchStreet MatchLevel = "STREET"
	MatchHouse  MatchLevel = "HOUSE"
)

// DistrictResult is the top-level result of the resolution pipeline.
type DistrictResult struct {
	GeocodedAddress GeocodedAddress
	DistrictInfo    *DistrictInfo
	MatchLevel      MatchLevel
	StatusCode      int
	Message         string
	TimestampUnix   int64
}

// TrimLeadingZeros strips leading zeros from a district code, collapsing an
// all-zero code to "0" rather than "". Every store that reads a district
// code off a row (shapefile, street-file) runs it through this before the
// code reaches a DistrictEntry, since the underlying tables are zero-padded
// but spec §8's no-leading-zeros property applies to every public result.
func TrimLeadingZeros(code string) string {
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" && code != "" {
		return "0"
	}
	return trimmed
}

// TrimAllLeadingZeros applies TrimLeadingZeros to every code in codes.
func TrimAllLeadingZeros(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = TrimLeadingZeros(c)
	}
	return out
}
