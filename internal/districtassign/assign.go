// Package districtassign implements the shapefile/street-file consolidation
// algorithm of §4.7: run both lookups in parallel, then reconcile using
// the street-file as the authoritative source near a boundary and the
// shapefile as the fallback everywhere else. The two-way fan-out uses
// internal/batch.RunGroup's errgroup-based cancel-together variant, matching
// §5's "two-thread pool, created per request, shut down on exit" resource
// model.
package districtassign

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nysage/atlas/internal/batch"
	"github.com/nysage/atlas/internal/geospatial"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/shapefile"
	"github.com/nysage/atlas/internal/streetfile"
)

// DefaultProximityThreshold is PROXIMITY_THRESHOLD from §4.7. The original
// Dao reports boundary proximity via ST_Distance_Sphere in meters; this
// service's shapefile.Store.queryProximity does the same (see
// shapefile/store.go), so despite the spec's "0.001 units" phrasing this
// constant is applied directly against that meter-valued proximity. A
// literal 0.001 meters would make every shapefile hit "far from the
// boundary" and disable consolidation entirely, so the decision recorded
// here is to treat the configured threshold as meters, tunable via
// New's thresholdMeters parameter.
const DefaultProximityThreshold = 50.0

const nearbySearchLimit = 5

// Assigner reconciles a shapefile.Store lookup with a streetfile.Store
// lookup per request.
type Assigner struct {
	shapes    *shapefile.Store
	streets   *streetfile.Store
	log       *slog.Logger
	threshold float64
}

// New constructs an Assigner. thresholdMeters <= 0 uses DefaultProximityThreshold.
func New(shapes *shapefile.Store, streets *streetfile.Store, log *slog.Logger, thresholdMeters float64) *Assigner {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultProximityThreshold
	}
	return &Assigner{shapes: shapes, streets: streets, log: log, threshold: thresholdMeters}
}

// AssignShapefileOnly bypasses streetfile reconciliation entirely, for
// callers whose districtStrategy flag forces the shapefile provider.
func (a *Assigner) AssignShapefileOnly(ctx context.Context, pt models.LatLon) (*models.DistrictInfo, error) {
	info, err := a.shapes.GetDistrictInfo(ctx, pt, models.AllDistrictTypes, true, true)
	if err != nil {
		return nil, fmt.Errorf("districtassign: shapefile lookup: %w", err)
	}
	return info, nil
}

// AssignStreetfileOnly bypasses shapefile reconciliation entirely, for
// callers whose districtStrategy flag forces the streetfile provider.
func (a *Assigner) AssignStreetfileOnly(ctx context.Context, addr models.StreetAddress) (*models.DistrictInfo, error) {
	info, err := a.streets.AssignDistricts(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("districtassign: streetfile lookup: %w", err)
	}
	return info, nil
}

// Assign runs the shapefile and street-file lookups concurrently and
// returns the consolidated DistrictInfo, per §4.7.
func (a *Assigner) Assign(ctx context.Context, pt models.LatLon, addr models.StreetAddress) (*models.DistrictInfo, error) {
	var shapeResult, streetResult *models.DistrictInfo

	err := batch.RunGroup(ctx, 2, 2, func(gctx context.Context, i int) error {
		switch i {
		case 0:
			info, err := a.shapes.GetDistrictInfo(gctx, pt, models.AllDistrictTypes, true, true)
			if err != nil {
				return fmt.Errorf("districtassign: shapefile lookup: %w", err)
			}
			shapeResult = info
		case 1:
			info, err := a.streets.AssignDistricts(gctx, addr)
			if err != nil {
				return fmt.Errorf("districtassign: streetfile lookup: %w", err)
			}
			streetResult = info
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return a.Consolidate(ctx, pt, shapeResult, streetResult)
}

// Consolidate implements §4.7's reconciliation algorithm directly, so
// callers that already have both halves (e.g. tests, or a caller using an
// explicit district provider for one half) can skip the fan-out.
func (a *Assigner) Consolidate(
	ctx context.Context,
	pt models.LatLon,
	shapeResult, streetResult *models.DistrictInfo,
) (*models.DistrictInfo, error) {
	if shapeResult == nil {
		shapeResult = models.NewDistrictInfo()
	}

	consolidated := models.NewDistrictInfo()
	for t, entry := range shapeResult.Entries {
		copied := *entry
		consolidated.Entries[t] = &copied
	}

	streetEmpty := streetResult == nil || len(streetResult.Entries) == 0

	for t, shapeEntry := range shapeResult.Entries {
		if !shapeEntry.HasProximity || shapeEntry.ProximityMeters >= a.threshold {
			continue // proximity above threshold: keep shapefile silently, even on disagreement
		}

		if streetEmpty {
			consolidated.UncertainDistricts[t] = true
			continue
		}

		streetEntry, ok := streetResult.Entries[t]
		if !ok {
			consolidated.UncertainDistricts[t] = true
			continue
		}
		if streetEntry.Code == shapeEntry.Code {
			continue // agreement: leave as-is
		}

		a.crossCheckProximity(ctx, t, pt, shapeEntry)

		nearby, err := a.shapes.GetNearbyDistricts(ctx, t, pt, a.threshold*nearbySearchLimit, nearbySearchLimit)
		if err != nil {
			a.log.WarnContext(ctx, "districtassign: nearby lookup failed", "type", t, "error", err)
			consolidated.UncertainDistricts[t] = true
			continue
		}

		if replacement := findNearbyCode(nearby, streetEntry.Code); replacement != nil {
			consolidated.Entries[t] = &models.DistrictEntry{
				Type: t, Name: replacement.Name, Code: replacement.Code,
				Map: replacement.Map, ProximityMeters: replacement.ProximityMeters, HasProximity: true,
			}
			continue
		}

		a.log.WarnContext(ctx, "districtassign: shapefile/streetfile mismatch with no nearby match",
			"type", t, "shape_code", shapeEntry.Code, "street_code", streetEntry.Code)
		consolidated.UncertainDistricts[t] = true
	}

	if streetResult != nil {
		for t, streetEntry := range streetResult.Entries {
			if _, ok := consolidated.Entries[t]; !ok {
				copied := *streetEntry
				consolidated.Entries[t] = &copied
			}
		}
	}

	return consolidated, nil
}

// crossCheckProximity is a diagnostic-only cross-check of the SQL-reported
// proximity against the shapefile's own polygon geometry, using
// geospatial.PointInMap/ClosestBoundaryDistance. It never changes the
// consolidation outcome — only logs when the two sources disagree, since
// shapeEntry.Map is already in memory by the time Consolidate reaches a
// mismatch.
func (a *Assigner) crossCheckProximity(ctx context.Context, t models.DistrictType, pt models.LatLon, shapeEntry *models.DistrictEntry) {
	if shapeEntry.Map == nil {
		return
	}

	if !geospatial.PointInMap(pt, *shapeEntry.Map) {
		a.log.WarnContext(ctx, "districtassign: point falls outside its assigned shapefile polygon",
			"type", t, "code", shapeEntry.Code)
	}

	geomDist := geospatial.ClosestBoundaryDistance(pt, *shapeEntry.Map)
	if math.Abs(geomDist-shapeEntry.ProximityMeters) > a.threshold {
		a.log.WarnContext(ctx, "districtassign: geometry-derived proximity diverges from SQL proximity",
			"type", t, "code", shapeEntry.Code,
			"sql_proximity_m", shapeEntry.ProximityMeters, "geometry_proximity_m", geomDist)
	}
}

func findNearbyCode(nearby []models.DistrictEntry, code string) *models.DistrictEntry {
	for i := range nearby {
		if nearby[i].Code == code {
			return &nearby[i]
		}
	}
	return nil
}
