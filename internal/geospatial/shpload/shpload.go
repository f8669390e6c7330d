// Package shpload loads a directory of ESRI shapefiles into the shapefile
// district tables (districts.<table>) that internal/shapefile queries,
// following sells-group-research-cli's geo.ImportCBSA shape: open with
// go-shp, walk records, upsert WKT geometry via ST_GeomFromText. It is the
// admin-only write path behind cmd/districtloader; the read path lives
// entirely in internal/shapefile.
package shpload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/models"
	"github.com/rotisserie/eris"
)

// districtTables mirrors shapefile.descriptors' table names (duplicated
// rather than imported since internal/shapefile's descriptor map is
// intentionally unexported — loading is an admin-time concern, not a
// resolution-time one).
var districtTables = map[models.DistrictType]string{
	models.DistrictSenate:        "senate_districts",
	models.DistrictAssembly:      "assembly_districts",
	models.DistrictCongressional: "congressional_districts",
	models.DistrictCounty:        "county_districts",
	models.DistrictSchool:        "school_districts",
	models.DistrictTown:          "town_districts",
	models.DistrictElection:      "election_districts",
	models.DistrictFire:          "fire_districts",
	models.DistrictVillage:       "village_districts",
	models.DistrictCity:          "city_districts",
	models.DistrictZip:           "zip_districts",
}

// LoadDirectory loads, for each known DistrictType, the file
// dir/<lower-cased type name>.shp into its table (a missing file is
// skipped; no other spelling of the name is tried), using nameField/codeField as the shapefile attribute names
// carrying the district's display name and code.
func LoadDirectory(ctx context.Context, db dbpool.Pool, dir, nameField, codeField string) error {
	for dt, table := range districtTables {
		shpPath := filepath.Join(dir, strings.ToLower(string(dt))+".shp")
		if err := loadOne(ctx, db, shpPath, table, nameField, codeField); err != nil {
			if errors.Is(err, errShapefileNotFound) {
				continue
			}
			return eris.Wrapf(err, "shpload: load %s", dt)
		}
	}
	return nil
}

var errShapefileNotFound = eris.New("shpload: shapefile not found")

func loadOne(ctx context.Context, db dbpool.Pool, shpPath, table, nameField, codeField string) error {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return errShapefileNotFound
	}
	defer reader.Close()

	nameIdx, codeIdx := fieldIndex(reader, nameField), fieldIndex(reader, codeField)
	if nameIdx < 0 || codeIdx < 0 {
		return eris.Errorf("shpload: required fields %s/%s not found in %s", nameField, codeField, shpPath)
	}

	if _, err := db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS districts.%s (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			geom geometry(MultiPolygon, 4326)
		)`, table)); err != nil {
		return eris.Wrap(err, "create table")
	}

	var loaded int
	for reader.Next() {
		_, shape := reader.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		code := strings.TrimSpace(reader.Attribute(codeIdx))
		name := strings.TrimSpace(reader.Attribute(nameIdx))
		if code == "" {
			continue
		}

		wkt := polygonToWKT(polygon)
		if wkt == "" {
			continue
		}

		_, err := db.Exec(ctx, fmt.Sprintf(
			`INSERT INTO districts.%s (code, name, geom)
			 VALUES ($1, $2, ST_GeomFromText($3, 4326))
			 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, geom = EXCLUDED.geom`, table),
			code, name, wkt)
		if err != nil {
			continue
		}
		loaded++
	}

	return nil
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func polygonToWKT(p *shp.Polygon) string {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("MULTIPOLYGON(((")

	parts := make([]int32, p.NumParts)
	copy(parts, p.Parts)

	for i := int32(0); i < p.NumParts; i++ {
		if i > 0 {
			sb.WriteString(")),((")
		}
		start := parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = parts[i+1]
		}
		for j := start; j < end; j++ {
			if j > start {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%f %f", p.Points[j].X, p.Points[j].Y)
		}
	}

	sb.WriteString(")))")
	return sb.String()
}
