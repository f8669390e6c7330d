// Package streetfile implements the tabular street-range district lookup of
// §4.4: a Postgres table keyed by (street name, building-number range,
// parity, zip5) mapping to a row of district codes. It follows the same
// pgx Query/Exec idiom as internal/geocache and internal/shapefile, the one
// shared DB-access seam every SQL-backed component in this service uses.
package streetfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/models"
)

// Store is the tabular street-range district store.
type Store struct {
	db  dbpool.Pool
	log *slog.Logger
}

// New constructs a Store backed by db.
func New(db dbpool.Pool, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

// districtColumns lists every column of the street_ranges table that names
// a DistrictType's code, in DistrictType(column) pairs.
var districtColumns = []struct {
	Type   models.DistrictType
	Column string
}{
	{models.DistrictSenate, "senate_code"},
	{models.DistrictAssembly, "assembly_code"},
	{models.DistrictCongressional, "congressional_code"},
	{models.DistrictCounty, "county_code"},
	{models.DistrictSchool, "school_code"},
	{models.DistrictTown, "town_code"},
	{models.DistrictElection, "election_code"},
	{models.DistrictFire, "fire_code"},
	{models.DistrictVillage, "village_code"},
	{models.DistrictCity, "city_code"},
}

// AssignDistricts resolves a specific house number within the parsed
// street address to a single row, per §4.4's assignDistricts. Match level
// is always HOUSE, since a row only exists for a concrete bldg-number
// range.
func (s *Store) AssignDistricts(ctx context.Context, addr models.StreetAddress) (*models.DistrictInfo, error) {
	query := `
		SELECT senate_code, assembly_code, congressional_code, county_code, school_code,
		       town_code, election_code, fire_code, village_code, city_code
		FROM street_ranges
		WHERE
			street_name = $1
			AND ($2::text = '' OR zip5 = $2)
			AND bldg_low <= $3 AND $3 <= bldg_high
			AND (parity = 'B' OR ($3 % 2 = 0 AND parity = 'E') OR ($3 % 2 = 1 AND parity = 'O'))
		LIMIT 1;
	`

	var codes [10]string
	err := s.db.QueryRow(ctx, query, addr.StreetName, addr.Zip5, addr.BldgNum).Scan(
		&codes[0], &codes[1], &codes[2], &codes[3], &codes[4], &codes[5], &codes[6], &codes[7], &codes[8], &codes[9],
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("streetfile: assign districts: %w", err)
	}

	info := models.NewDistrictInfo()
	for i, dc := range districtColumns {
		if codes[i] == "" {
			continue
		}
		info.Entries[dc.Type] = &models.DistrictEntry{Type: dc.Type, Code: models.TrimLeadingZeros(codes[i])}
	}
	return info, nil
}

// GetAllStandardDistrictMatches returns, per DistrictType, the set of
// distinct codes across every row matching the given streets (optional) and
// zips, per §4.4's getAllStandardDistrictMatches.
func (s *Store) GetAllStandardDistrictMatches(
	ctx context.Context,
	streetNames []string,
	zip5s []string,
) (map[models.DistrictType][]string, error) {
	columnsSQL := ""
	for i, dc := range districtColumns {
		if i > 0 {
			columnsSQL += ", "
		}
		columnsSQL += dc.Column
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM street_ranges
		WHERE
			($1::text[] IS NULL OR array_length($1::text[], 1) = 0 OR street_name = ANY($1))
			AND zip5 = ANY($2);
	`, columnsSQL)

	rows, err := s.db.Query(ctx, query, nullableStrings(streetNames), zip5s)
	if err != nil {
		return nil, fmt.Errorf("streetfile: query standard matches: %w", err)
	}
	defer rows.Close()

	seen := make(map[models.DistrictType]map[string]bool, len(districtColumns))
	for _, dc := range districtColumns {
		seen[dc.Type] = make(map[string]bool)
	}

	for rows.Next() {
		var codes [10]string
		scanArgs := make([]any, len(codes))
		for i := range codes {
			scanArgs[i] = &codes[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("streetfile: scan standard match row: %w", err)
		}
		for i, dc := range districtColumns {
			if codes[i] != "" {
				seen[dc.Type][models.TrimLeadingZeros(codes[i])] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("streetfile: read standard match rows: %w", err)
	}

	out := make(map[models.DistrictType][]string, len(districtColumns))
	for t, codes := range seen {
		for code := range codes {
			out[t] = append(out[t], code)
		}
	}
	return out, nil
}

// StreetRange is one raw range row, for display/diagnostics per §4.4's
// getDistrictStreetRanges.
type StreetRange struct {
	StreetName string
	BldgLow    int
	BldgHigh   int
	Parity     string
	Zip5       string
}

// GetDistrictStreetRanges returns the raw range rows for streetName within
// zip5s.
func (s *Store) GetDistrictStreetRanges(ctx context.Context, streetName string, zip5s []string) ([]StreetRange, error) {
	query := `
		SELECT street_name, bldg_low, bldg_high, parity, zip5
		FROM street_ranges
		WHERE street_name = $1 AND zip5 = ANY($2)
		ORDER BY bldg_low ASC;
	`

	rows, err := s.db.Query(ctx, query, streetName, zip5s)
	if err != nil {
		return nil, fmt.Errorf("streetfile: query street ranges: %w", err)
	}
	defer rows.Close()

	var out []StreetRange
	for rows.Next() {
		var r StreetRange
		if err := rows.Scan(&r.StreetName, &r.BldgLow, &r.BldgHigh, &r.Parity, &r.Zip5); err != nil {
			return nil, fmt.Errorf("streetfile: scan street range row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("streetfile: read street range rows: %w", err)
	}
	return out, nil
}

// CityZipLookup returns the distinct zip5s on record for city, used by
// §4.8's multi-match to derive a zip set when the caller supplied only a
// city name.
func (s *Store) CityZipLookup(ctx context.Context, city string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT zip5 FROM street_ranges WHERE city = $1;`, city)
	if err != nil {
		return nil, fmt.Errorf("streetfile: city zip lookup: %w", err)
	}
	defer rows.Close()

	var zips []string
	for rows.Next() {
		var z string
		if err := rows.Scan(&z); err != nil {
			return nil, fmt.Errorf("streetfile: scan city zip row: %w", err)
		}
		zips = append(zips, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("streetfile: read city zip rows: %w", err)
	}
	return zips, nil
}

func nullableStrings(s []string) any {
	if len(s) == 0 {
		return nil
	}
	return s
}
