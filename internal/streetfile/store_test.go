package streetfile_test

import (
	"log/slog"
	"testing"

	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/streetfile"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*streetfile.Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return streetfile.New(mock, slog.Default()), mock
}

func TestAssignDistricts_Hit(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	addr := models.StreetAddress{BldgNum: 200, StreetName: "STATE", Zip5: "12210"}

	mock.ExpectQuery(".*street_ranges.*").
		WithArgs("STATE", "12210", 200).
		WillReturnRows(pgxmock.NewRows([]string{
			"senate_code", "assembly_code", "congressional_code", "county_code", "school_code",
			"town_code", "election_code", "fire_code", "village_code", "city_code",
		}).AddRow("46", "108", "20", "001", "", "", "", "", "", "1000"))

	info, err := store.AssignDistricts(t.Context(), addr)

	require.NoError(t, err)
	require.Contains(t, info.Entries, models.DistrictSenate)
	assert.Equal(t, "46", info.Entries[models.DistrictSenate].Code)
	require.Contains(t, info.Entries, models.DistrictCounty)
	assert.Equal(t, "1", info.Entries[models.DistrictCounty].Code, "leading zeros must be trimmed off a street_ranges code")
	assert.NotContains(t, info.Entries, models.DistrictSchool)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignDistricts_Miss(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	addr := models.StreetAddress{BldgNum: 1, StreetName: "NOWHERE"}

	mock.ExpectQuery(".*street_ranges.*").
		WithArgs("NOWHERE", "", 1).
		WillReturnRows(pgxmock.NewRows([]string{
			"senate_code", "assembly_code", "congressional_code", "county_code", "school_code",
			"town_code", "election_code", "fire_code", "village_code", "city_code",
		}))

	info, err := store.AssignDistricts(t.Context(), addr)

	require.NoError(t, err)
	assert.Nil(t, info)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDistrictStreetRanges(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery(".*street_ranges.*").
		WithArgs("STATE", []string{"12210"}).
		WillReturnRows(pgxmock.NewRows([]string{"street_name", "bldg_low", "bldg_high", "parity", "zip5"}).
			AddRow("STATE", 100, 298, "E", "12210"))

	ranges, err := store.GetDistrictStreetRanges(t.Context(), "STATE", []string{"12210"})

	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, 100, ranges[0].BldgLow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllStandardDistrictMatches_EmptyStreetsMatchesAnyWithinZips(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery(".*street_ranges.*").
		WithArgs(nil, []string{"12210"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"senate_code", "assembly_code", "congressional_code", "county_code", "school_code",
			"town_code", "election_code", "fire_code", "village_code", "city_code",
		}).AddRow("46", "108", "20", "001", "001", "", "", "", "", "1000"))

	matches, err := store.GetAllStandardDistrictMatches(t.Context(), nil, []string{"12210"})

	require.NoError(t, err)
	assert.Equal(t, []string{"46"}, matches[models.DistrictSenate])
	assert.Equal(t, []string{"1"}, matches[models.DistrictCounty], "leading zeros must be trimmed off a street_ranges code")
	assert.NoError(t, mock.ExpectationsWereMet())
}
