package districtassign_test

import (
	"log/slog"
	"testing"

	"github.com/nysage/atlas/internal/districtassign"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/shapefile"
	"github.com/nysage/atlas/internal/streetfile"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssigner(t *testing.T, threshold float64) *districtassign.Assigner {
	t.Helper()
	return districtassign.New(shapefile.New(nil, slog.Default()), streetfile.New(nil, slog.Default()), slog.Default(), threshold)
}

func entry(t models.DistrictType, code string, proximity float64, hasProximity bool) *models.DistrictEntry {
	return &models.DistrictEntry{Type: t, Code: code, ProximityMeters: proximity, HasProximity: hasProximity}
}

func TestConsolidate_AgreementLeavesShapefileCode(t *testing.T) {
	t.Parallel()
	a := newAssigner(t, 50)

	shape := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "46", 10, true),
	}, UncertainDistricts: map[models.DistrictType]bool{}}
	street := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "46", 0, false),
	}, UncertainDistricts: map[models.DistrictType]bool{}}

	result, err := a.Consolidate(t.Context(), models.LatLon{}, shape, street)

	require.NoError(t, err)
	assert.Equal(t, "46", result.Entries[models.DistrictSenate].Code)
	assert.False(t, result.UncertainDistricts[models.DistrictSenate])
}

func TestConsolidate_ProximityAboveThresholdKeepsShapefileSilently(t *testing.T) {
	t.Parallel()
	a := newAssigner(t, 50)

	shape := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "46", 500, true),
	}, UncertainDistricts: map[models.DistrictType]bool{}}
	street := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "47", 0, false),
	}, UncertainDistricts: map[models.DistrictType]bool{}}

	result, err := a.Consolidate(t.Context(), models.LatLon{}, shape, street)

	require.NoError(t, err)
	assert.Equal(t, "46", result.Entries[models.DistrictSenate].Code)
	assert.False(t, result.UncertainDistricts[models.DistrictSenate])
}

func TestConsolidate_EmptyStreetfileMarksUncertain(t *testing.T) {
	t.Parallel()
	a := newAssigner(t, 50)

	shape := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "46", 10, true),
	}, UncertainDistricts: map[models.DistrictType]bool{}}

	result, err := a.Consolidate(t.Context(), models.LatLon{}, shape, models.NewDistrictInfo())

	require.NoError(t, err)
	assert.True(t, result.UncertainDistricts[models.DistrictSenate])
}

// TestConsolidate_MismatchCrossChecksGeometryWithoutChangingOutcome exercises
// the crossCheckProximity wiring: a shapefile entry carrying real polygon
// geometry that the query point falls outside of must still resolve via the
// existing nearby-district SQL lookup, unaffected by the geometry cross-check
// (which only logs).
func TestConsolidate_MismatchCrossChecksGeometryWithoutChangingOutcome(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	a := districtassign.New(shapefile.New(mock, slog.Default()), streetfile.New(nil, slog.Default()), slog.Default(), 50)

	farRing := models.Ring{
		{Lat: 40.0, Lon: -74.0}, {Lat: 40.0, Lon: -74.001}, {Lat: 40.001, Lon: -74.001}, {Lat: 40.0, Lon: -74.0},
	}
	shapeMap := &models.DistrictMap{Polygons: []models.Ring{farRing}}

	shapeEntry := entry(models.DistrictSenate, "46", 10, true)
	shapeEntry.Map = shapeMap
	shape := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: shapeEntry,
	}, UncertainDistricts: map[models.DistrictType]bool{}}
	street := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "47", 0, false),
	}, UncertainDistricts: map[models.DistrictType]bool{}}

	mock.ExpectQuery(".*").
		WithArgs(-73.75, 42.65, 250.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"name", "code", "dist"}).
			AddRow("Senate 47", "47", 30.0))

	result, err := a.Consolidate(t.Context(), models.LatLon{Lat: 42.65, Lon: -73.75}, shape, street)

	require.NoError(t, err)
	assert.Equal(t, "47", result.Entries[models.DistrictSenate].Code)
	assert.False(t, result.UncertainDistricts[models.DistrictSenate])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsolidate_FallbackUnionFromStreetfile(t *testing.T) {
	t.Parallel()
	a := newAssigner(t, 50)

	shape := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "46", 10, true),
	}, UncertainDistricts: map[models.DistrictType]bool{}}
	street := &models.DistrictInfo{Entries: map[models.DistrictType]*models.DistrictEntry{
		models.DistrictSenate: entry(models.DistrictSenate, "46", 0, false),
		models.DistrictTown:   entry(models.DistrictTown, "1000", 0, false),
	}, UncertainDistricts: map[models.DistrictType]bool{}}

	result, err := a.Consolidate(t.Context(), models.LatLon{}, shape, street)

	require.NoError(t, err)
	assert.Equal(t, "1000", result.Entries[models.DistrictTown].Code)
}
