package geocache_test

import (
	"log/slog"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nysage/atlas/internal/geocache"
	"github.com/nysage/atlas/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCache(t *testing.T) (*geocache.Cache, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return geocache.New(mock, slog.Default(), geocache.DefaultBufferSize, nil), mock
}

func TestLookup_NotRetrievable(t *testing.T) {
	t.Parallel()
	cache, _ := newMockCache(t)

	result, err := cache.Lookup(t.Context(), models.StreetAddress{})

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestLookup_ByStreetHit(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	addr := models.StreetAddress{
		BldgNum: 200, StreetName: "STATE", StreetType: "ST",
		Location: "ALBANY", State: "NY", Zip5: "12210",
	}

	mock.ExpectQuery(".*").
		WithArgs(200, "", "STATE", "", "ST", "12210", "ALBANY", "NY").
		WillReturnRows(
			pgxmock.NewRows([]string{
				"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
				"lat", "lon", "method", "quality",
			}).AddRow(200, "", "STATE", "ST", "", "ALBANY", "NY", "12210", 42.65, -73.75, "google", int(models.QualityHouse)),
		)

	result, err := cache.Lookup(t.Context(), addr)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "State", result.Street.StreetName)
	assert.Equal(t, "Albany", result.Street.Location)
	assert.True(t, result.Geocode.Cached)
	assert.Equal(t, models.QualityHouse, result.Geocode.Quality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestLookup_ZipMatchIgnoresCityMismatch covers spec.md's "match on
// (bldgNum, preDir, street, postDir, streetType) AND ((zip5 matches
// non-empty) OR (no zip5 AND city+state match))" rule: when the caller
// supplies a zip5, a differing city must not suppress the match.
func TestLookup_ZipMatchIgnoresCityMismatch(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	addr := models.StreetAddress{
		BldgNum: 200, StreetName: "STATE", StreetType: "ST",
		Location: "NOT-ALBANY", State: "NY", Zip5: "12210",
	}

	mock.ExpectQuery(".*").
		WithArgs(200, "", "STATE", "", "ST", "12210", "NOT-ALBANY", "NY").
		WillReturnRows(
			pgxmock.NewRows([]string{
				"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
				"lat", "lon", "method", "quality",
			}).AddRow(200, "", "STATE", "ST", "", "ALBANY", "NY", "12210", 42.65, -73.75, "google", int(models.QualityHouse)),
		)

	result, err := cache.Lookup(t.Context(), addr)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Albany", result.Street.Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_BuildingMatchBelowHouseQualityIsMiss(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	addr := models.StreetAddress{
		BldgNum: 200, StreetName: "STATE", StreetType: "ST",
		Location: "ALBANY", State: "NY", Zip5: "12210",
	}

	mock.ExpectQuery(".*").
		WithArgs(200, "", "STATE", "", "ST", "12210", "ALBANY", "NY").
		WillReturnRows(
			pgxmock.NewRows([]string{
				"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
				"lat", "lon", "method", "quality",
			}).AddRow(200, "", "STATE", "ST", "", "ALBANY", "NY", "12210", 42.65, -73.75, "google", int(models.QualityStreet)),
		)

	result, err := cache.Lookup(t.Context(), addr)

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_ByLocationOnly(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	addr := models.StreetAddress{POBox: true, POBoxNum: 7016, Location: "ALBANY", State: "NY", Zip5: "12225"}

	mock.ExpectQuery(".*").
		WithArgs("12225", "ALBANY", "NY").
		WillReturnRows(
			pgxmock.NewRows([]string{
				"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
				"lat", "lon", "method", "quality",
			}).AddRow(0, "", "", "", "", "ALBANY", "NY", "12225", 42.65, -73.75, "google", int(models.QualityZip)),
		)

	result, err := cache.Lookup(t.Context(), addr)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.QualityZip, result.Geocode.Quality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_QueryError(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	addr := models.StreetAddress{BldgNum: 1, StreetName: "NOWHERE", StreetType: "ST", Location: "ALBANY", State: "NY"}

	mock.ExpectQuery(".*").
		WithArgs(1, "", "NOWHERE", "", "ST", "", "ALBANY", "NY").
		WillReturnError(assert.AnError)

	result, err := cache.Lookup(t.Context(), addr)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_FiltersInvalidEntries(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	cache.Put(t.Context(), models.GeocodedAddress{})
	cache.Put(t.Context(), models.GeocodedAddress{
		Address: models.Address{Addr1: "1 Main St", City: "Albany", State: "NY"},
		Geocode: models.Geocode{Lat: 42.1, Lon: -73.1, Quality: models.QualityHouse, Cached: true},
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush_InsertsCacheableEntries(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO geocode_cache")).
		WithArgs(200, "", "STATE", "", "ST", "ALBANY", "NY", "12210", 42.65, -73.75, "google", int(models.QualityHouse)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	cache.Put(t.Context(), models.GeocodedAddress{
		Address: models.Address{Addr1: "200 State St", City: "Albany", State: "NY", Zip5: "12210"},
		Geocode: models.Geocode{Lat: 42.65, Lon: -73.75, Method: "google", Quality: models.QualityHouse},
	})
	cache.Flush(t.Context())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush_SkipsNonCacheableEntries(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	cache.Put(t.Context(), models.GeocodedAddress{
		Address: models.Address{Addr1: "Main St", State: "NY"},
		Geocode: models.Geocode{Lat: 42.65, Lon: -73.75, Quality: models.QualityCity},
	})
	cache.Flush(t.Context())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush_SuppressesDuplicateKeyErrors(t *testing.T) {
	t.Parallel()
	cache, mock := newMockCache(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO geocode_cache")).
		WithArgs(200, "", "STATE", "", "ST", "ALBANY", "NY", "12210", 42.65, -73.75, "google", int(models.QualityHouse)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	cache.Put(t.Context(), models.GeocodedAddress{
		Address: models.Address{Addr1: "200 State St", City: "Albany", State: "NY", Zip5: "12210"},
		Geocode: models.Geocode{Lat: 42.65, Lon: -73.75, Method: "google", Quality: models.QualityHouse},
	})
	cache.Flush(t.Context())

	assert.NoError(t, mock.ExpectationsWereMet())
}
