package shapefile

import "github.com/nysage/atlas/internal/models"

// descriptor is the per-DistrictType shape-code descriptor: which table
// holds its geometry, which columns carry its display name/code, and the
// SRID its geometry column is stored in.
type descriptor struct {
	Table      string
	NameColumn string
	CodeColumn string
	SRID       int
}

// descriptors mirrors the original DAO's DistrictShapeCode enum: one row per
// DistrictType naming the districts.<table> it is stored in.
var descriptors = map[models.DistrictType]descriptor{
	models.DistrictSenate:        {Table: "senate", NameColumn: "district", CodeColumn: "district", SRID: 4326},
	models.DistrictAssembly:      {Table: "assembly", NameColumn: "district", CodeColumn: "district", SRID: 4326},
	models.DistrictCongressional: {Table: "congressional", NameColumn: "district", CodeColumn: "district", SRID: 4326},
	models.DistrictCounty:        {Table: "county", NameColumn: "name", CodeColumn: "fips", SRID: 4326},
	models.DistrictSchool:        {Table: "school", NameColumn: "name", CodeColumn: "code", SRID: 4326},
	models.DistrictTown:          {Table: "town", NameColumn: "name", CodeColumn: "code", SRID: 4326},
	models.DistrictElection:      {Table: "election", NameColumn: "name", CodeColumn: "code", SRID: 4326},
	models.DistrictFire:          {Table: "fire", NameColumn: "name", CodeColumn: "code", SRID: 4326},
	models.DistrictVillage:       {Table: "village", NameColumn: "name", CodeColumn: "code", SRID: 4326},
	models.DistrictCity:          {Table: "city", NameColumn: "name", CodeColumn: "code", SRID: 4326},
	models.DistrictZip:           {Table: "zip", NameColumn: "zcta", CodeColumn: "zcta", SRID: 4326},
}

// validTables is the allowlist used before any DistrictType-derived table
// name is interpolated into a query, following the same pattern used in
// the pack's PostGIS helpers (spatial.go's validTables/validateTable).
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		m[d.Table] = true
	}
	return m
}()

func validateTable(table string) bool {
	return validTables[table]
}
