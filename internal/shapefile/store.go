// Package shapefile implements the PostGIS-backed district lookups of §4.3:
// point-in-polygon district resolution, overlap-area computation between
// district sets, reference-boundary union, nearby-district search, and a
// process-wide district-map cache. It follows the query-per-type,
// union-combine shape of the original DistrictShapefileDao, re-expressed as
// parameterized pgx queries (the original built raw SQL strings; this
// keeps the ST_Contains test, measures proximity with ST_Distance over
// geography in place of ST_Distance_Sphere, and binds every
// value, never interpolating caller-controlled data) and the table-name
// allowlist pattern used throughout the pack's own PostGIS helpers.
package shapefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/geospatial"
	"github.com/nysage/atlas/internal/models"
)

const schema = "districts"

// fipsToCountyID maps a county's 3-digit FIPS code to the service's
// internal county id, per §4.3 item 1 ("County codes are mapped from FIPS
// to the internal county id via a metadata table"). Populated from the NY
// county metadata table at startup via LoadCountyFipsMap; empty until then.
type fipsToCountyID map[string]string

// Store is the PostGIS-backed shapefile district store.
type Store struct {
	db  dbpool.Pool
	log *slog.Logger

	countyFips fipsToCountyID

	mu        sync.RWMutex
	mapCache  map[models.DistrictType][]models.DistrictMap
	codeCache map[models.DistrictType]map[string]models.DistrictMap
}

// New constructs a Store backed by db.
func New(db dbpool.Pool, log *slog.Logger) *Store {
	return &Store{
		db:         db,
		log:        log,
		countyFips: make(fipsToCountyID),
		mapCache:   make(map[models.DistrictType][]models.DistrictMap),
		codeCache:  make(map[models.DistrictType]map[string]models.DistrictMap),
	}
}

// LoadCountyFipsMap populates the FIPS->internal-county-id translation
// table from the districts.county_fips metadata table.
func (s *Store) LoadCountyFipsMap(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `SELECT fips, county_id FROM `+schema+`.county_fips;`)
	if err != nil {
		return fmt.Errorf("shapefile: load county fips map: %w", err)
	}
	defer rows.Close()

	fips := make(fipsToCountyID)
	for rows.Next() {
		var code, id string
		if err := rows.Scan(&code, &id); err != nil {
			return fmt.Errorf("shapefile: scan county fips row: %w", err)
		}
		fips[code] = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("shapefile: read county fips rows: %w", err)
	}

	s.mu.Lock()
	s.countyFips = fips
	s.mu.Unlock()
	return nil
}

// GetDistrictInfo resolves the districts containing pt for each requested
// type, per §4.3 item 1.
func (s *Store) GetDistrictInfo(
	ctx context.Context,
	pt models.LatLon,
	types []models.DistrictType,
	fetchMaps, fetchProximity bool,
) (*models.DistrictInfo, error) {
	info := models.NewDistrictInfo()

	for _, t := range types {
		desc, ok := descriptors[t]
		if !ok || !validateTable(desc.Table) {
			continue
		}

		entry, err := s.queryDistrictInfo(ctx, desc, t, pt, fetchMaps, fetchProximity)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		info.Entries[t] = entry
	}

	return info, nil
}

func (s *Store) queryDistrictInfo(
	ctx context.Context,
	desc descriptor,
	districtType models.DistrictType,
	pt models.LatLon,
	fetchMap, fetchProximity bool,
) (*models.DistrictEntry, error) {
	mapExpr := "NULL"
	if fetchMap && !districtType.GloballyUniqueCoded() {
		mapExpr = "ST_AsGeoJSON(geom)"
	}

	query := fmt.Sprintf(`
		SELECT %s AS name, %s AS code, %s AS map
		FROM %s.%s
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), %d))
		LIMIT 1;
	`, desc.NameColumn, desc.CodeColumn, mapExpr, schema, desc.Table, desc.SRID)

	var name, code string
	var mapJSON *string
	err := s.db.QueryRow(ctx, query, pt.Lon, pt.Lat).Scan(&name, &code, &mapJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("shapefile: query district info for %s: %w", districtType, err)
	}

	entry := &models.DistrictEntry{
		Type: districtType,
		Name: name,
		Code: s.resolveCode(districtType, models.TrimLeadingZeros(code)),
	}

	if mapJSON != nil {
		m, err := geospatial.DecodeGeoJSON([]byte(*mapJSON))
		if err == nil {
			entry.Map = &m
		}
	}

	if fetchProximity {
		dist, err := s.queryProximity(ctx, desc, pt)
		if err == nil {
			entry.ProximityMeters = dist
			entry.HasProximity = true
		}
	}

	return entry, nil
}

func (s *Store) queryProximity(ctx context.Context, desc descriptor, pt models.LatLon) (float64, error) {
	query := fmt.Sprintf(`
		SELECT ST_Distance(
			ST_Boundary(geom)::geography,
			ST_SetSRID(ST_MakePoint($1, $2), %d)::geography
		)
		FROM %s.%s
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), %d))
		LIMIT 1;
	`, desc.SRID, schema, desc.Table, desc.SRID)

	var meters float64
	err := s.db.QueryRow(ctx, query, pt.Lon, pt.Lat).Scan(&meters)
	if err != nil {
		return 0, fmt.Errorf("shapefile: query proximity: %w", err)
	}
	return meters, nil
}

// resolveCode applies the COUNTY FIPS->internal-id translation; every other
// type's code passes through unchanged.
func (s *Store) resolveCode(t models.DistrictType, code string) string {
	if t != models.DistrictCounty {
		return code
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.countyFips[code]; ok {
		return id
	}
	return code
}

// GetDistrictOverlap computes the intersection area between the target
// district set and the union of the reference district set, per §4.3
// item 2. It relies on a districts.utmzone(geometry) SQL function,
// consistent with the DAO this is grounded on.
func (s *Store) GetDistrictOverlap(
	ctx context.Context,
	targetType models.DistrictType,
	targetCodes []string,
	refType models.DistrictType,
	refCodes []string,
) (*models.DistrictOverlap, error) {
	targetDesc, ok := descriptors[targetType]
	if !ok || !validateTable(targetDesc.Table) {
		return nil, fmt.Errorf("shapefile: unknown target district type %s", targetType)
	}
	refDesc, ok := descriptors[refType]
	if !ok || !validateTable(refDesc.Table) {
		return nil, fmt.Errorf("shapefile: unknown reference district type %s", refType)
	}

	includeGeom := targetType == models.DistrictSenate

	geomExpr := "NULL"
	if includeGeom {
		geomExpr = fmt.Sprintf(
			"ST_AsGeoJSON(ST_CollectionExtract(ST_Intersection(target.geom, source.geom), 3))",
		)
	}

	targetFilter := "TRUE"
	args := []any{refCodes}
	if len(targetCodes) > 0 {
		targetFilter = fmt.Sprintf("trim(leading '0' from target.%s) = ANY($2)", targetDesc.CodeColumn)
		args = append(args, models.TrimAllLeadingZeros(targetCodes))
	}

	query := fmt.Sprintf(`
		SELECT target.%s AS code,
		       ST_Area(ST_Transform(ST_Intersection(target.geom, source.geom), %s.utmzone(ST_Centroid(source.geom)))) AS area,
		       %s AS intersect_geom
		FROM %s.%s target,
		     (SELECT ST_Union(geom) AS geom FROM %s.%s WHERE trim(leading '0' from %s) = ANY($1)) AS source
		WHERE %s
		  AND ST_Area(ST_Intersection(target.geom, source.geom)) > 0
		ORDER BY area DESC;
	`, targetDesc.CodeColumn, schema, geomExpr, schema, targetDesc.Table, schema, refDesc.Table, refDesc.CodeColumn, targetFilter)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("shapefile: query district overlap: %w", err)
	}
	defer rows.Close()

	overlap := &models.DistrictOverlap{
		ReferenceType:  refType,
		TargetType:     targetType,
		ReferenceCodes: refCodes,
		TargetAreas:    make(map[string]float64),
		TargetGeometry: make(map[string]models.DistrictMap),
	}

	for rows.Next() {
		var code string
		var area float64
		var intersectGeom *string
		if err := rows.Scan(&code, &area, &intersectGeom); err != nil {
			return nil, fmt.Errorf("shapefile: scan overlap row: %w", err)
		}
		code = models.TrimLeadingZeros(code)
		overlap.TargetAreas[code] = area
		overlap.TotalAreaMeters += area

		if intersectGeom != nil {
			if m, err := geospatial.DecodeGeoJSON([]byte(*intersectGeom)); err == nil {
				overlap.TargetGeometry[code] = m
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shapefile: read overlap rows: %w", err)
	}

	return overlap, nil
}

// GetOverlapReferenceBoundary returns the polygonized union of refCodes
// within refType, per §4.3 item 3.
func (s *Store) GetOverlapReferenceBoundary(
	ctx context.Context,
	refType models.DistrictType,
	refCodes []string,
) (models.DistrictMap, error) {
	desc, ok := descriptors[refType]
	if !ok || !validateTable(desc.Table) {
		return models.DistrictMap{}, fmt.Errorf("shapefile: unknown reference district type %s", refType)
	}

	query := fmt.Sprintf(`
		SELECT ST_AsGeoJSON(ST_Union(geom))
		FROM %s.%s
		WHERE trim(leading '0' from %s) = ANY($1);
	`, schema, desc.Table, desc.CodeColumn)

	var geomJSON *string
	if err := s.db.QueryRow(ctx, query, models.TrimAllLeadingZeros(refCodes)).Scan(&geomJSON); err != nil {
		return models.DistrictMap{}, fmt.Errorf("shapefile: query reference boundary: %w", err)
	}
	if geomJSON == nil {
		return models.DistrictMap{}, nil
	}

	m, err := geospatial.DecodeGeoJSON([]byte(*geomJSON))
	if err != nil {
		return models.DistrictMap{}, fmt.Errorf("shapefile: decode reference boundary: %w", err)
	}
	return m, nil
}

// GetNearbyDistricts returns districts of the given type whose geometry
// excludes pt, ordered by ascending distance, per §4.3 item 4.
func (s *Store) GetNearbyDistricts(
	ctx context.Context,
	t models.DistrictType,
	pt models.LatLon,
	maxDistanceMeters float64,
	limit int,
) ([]models.DistrictEntry, error) {
	desc, ok := descriptors[t]
	if !ok || !validateTable(desc.Table) {
		return nil, fmt.Errorf("shapefile: unknown district type %s", t)
	}

	query := fmt.Sprintf(`
		SELECT %s AS name, %s AS code,
		       ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), %d)::geography) AS dist
		FROM %s.%s
		WHERE NOT ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), %d))
		  AND ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), %d)::geography) <= $3
		ORDER BY dist ASC
		LIMIT $4;
	`, desc.NameColumn, desc.CodeColumn, desc.SRID, schema, desc.Table, desc.SRID, desc.SRID)

	rows, err := s.db.Query(ctx, query, pt.Lon, pt.Lat, maxDistanceMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("shapefile: query nearby districts: %w", err)
	}
	defer rows.Close()

	var out []models.DistrictEntry
	for rows.Next() {
		var name, code string
		var dist float64
		if err := rows.Scan(&name, &code, &dist); err != nil {
			return nil, fmt.Errorf("shapefile: scan nearby district row: %w", err)
		}
		out = append(out, models.DistrictEntry{
			Type: t, Name: name, Code: s.resolveCode(t, models.TrimLeadingZeros(code)),
			ProximityMeters: dist, HasProximity: true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shapefile: read nearby district rows: %w", err)
	}

	return out, nil
}

// CacheDistrictMaps bulk-loads every globally-unique-coded type's geometry
// into the process-wide caches, per §4.3 item 5. SCHOOL (and any other
// non-globally-unique type) is skipped; GetDistrictMapByCode fetches those
// on demand instead.
func (s *Store) CacheDistrictMaps(ctx context.Context) error {
	for t, desc := range descriptors {
		if !t.GloballyUniqueCoded() {
			continue
		}

		query := fmt.Sprintf(`SELECT %s AS code, %s AS name, ST_AsGeoJSON(geom) AS geom FROM %s.%s;`,
			desc.CodeColumn, desc.NameColumn, schema, desc.Table)

		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("shapefile: cache district maps for %s: %w", t, err)
		}

		var maps []models.DistrictMap
		byCode := make(map[string]models.DistrictMap)

		for rows.Next() {
			var code, name, geomJSON string
			if err := rows.Scan(&code, &name, &geomJSON); err != nil {
				rows.Close()
				return fmt.Errorf("shapefile: scan cached district row: %w", err)
			}
			m, err := geospatial.DecodeGeoJSON([]byte(geomJSON))
			if err != nil {
				continue
			}
			code = s.resolveCode(t, models.TrimLeadingZeros(code))
			m.Metadata = &models.DistrictMetadata{Type: t, Name: name, Code: code}
			maps = append(maps, m)
			byCode[code] = m
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("shapefile: read cached district rows for %s: %w", t, err)
		}

		s.mu.Lock()
		s.mapCache[t] = maps
		s.codeCache[t] = byCode
		s.mu.Unlock()
	}

	return nil
}

// GetDistrictMapByCode returns a cached map if one was loaded by
// CacheDistrictMaps; for non-globally-unique types (SCHOOL) it queries on
// demand instead.
func (s *Store) GetDistrictMapByCode(ctx context.Context, t models.DistrictType, code string) (*models.DistrictMap, error) {
	if t.GloballyUniqueCoded() {
		s.mu.RLock()
		m, ok := s.codeCache[t][code]
		s.mu.RUnlock()
		if ok {
			return &m, nil
		}
		return nil, nil
	}

	desc, ok := descriptors[t]
	if !ok || !validateTable(desc.Table) {
		return nil, fmt.Errorf("shapefile: unknown district type %s", t)
	}

	query := fmt.Sprintf(`SELECT ST_AsGeoJSON(geom) FROM %s.%s WHERE trim(leading '0' from %s) = $1 LIMIT 1;`,
		schema, desc.Table, desc.CodeColumn)

	var geomJSON string
	err := s.db.QueryRow(ctx, query, models.TrimLeadingZeros(code)).Scan(&geomJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("shapefile: query district map by code: %w", err)
	}

	m, err := geospatial.DecodeGeoJSON([]byte(geomJSON))
	if err != nil {
		return nil, fmt.Errorf("shapefile: decode district map: %w", err)
	}
	return &m, nil
}
