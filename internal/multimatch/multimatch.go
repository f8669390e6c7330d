// Package multimatch implements the overlap-based multi-match resolution
// of §4.8, used when a geocode's quality falls below HOUSE: instead of a
// single district per type, candidates are gathered over a zip set and
// narrowed by overlap area with the zip boundary. Overlap computation
// delegates to internal/shapefile.GetDistrictOverlap, the same PostGIS
// intersection-area query the shapefile package already exposes.
package multimatch

import (
	"context"
	"fmt"

	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/shapefile"
	"github.com/nysage/atlas/internal/streetfile"
)

// Resolver computes multi-match district candidates over a street-file and
// shapefile backing store.
type Resolver struct {
	streets *streetfile.Store
	shapes  *shapefile.Store
}

// New constructs a Resolver.
func New(streets *streetfile.Store, shapes *shapefile.Store) *Resolver {
	return &Resolver{streets: streets, shapes: shapes}
}

// Resolve runs §4.8's procedure for a geocoded street address whose geocode
// quality is below HOUSE. It returns the consolidated DistrictInfo and the
// MatchLevel actually achieved.
func (r *Resolver) Resolve(ctx context.Context, street models.StreetAddress, quality models.Quality) (*models.DistrictInfo, models.MatchLevel, error) {
	level, zips, err := r.selectLevel(ctx, street, quality)
	if err != nil {
		return nil, models.MatchNone, err
	}
	if level == models.MatchNone {
		return models.NewDistrictInfo(), models.MatchNone, nil
	}

	var streetNames []string
	if level == models.MatchStreet && street.HasStreet() {
		streetNames = []string{street.StreetName}
	}

	candidates, err := r.streets.GetAllStandardDistrictMatches(ctx, streetNames, zips)
	if err != nil {
		return nil, models.MatchNone, fmt.Errorf("multimatch: get candidates: %w", err)
	}

	var refMap models.DistrictMap
	if level == models.MatchCity || level == models.MatchZip5 {
		refMap, err = r.shapes.GetOverlapReferenceBoundary(ctx, models.DistrictZip, zips)
		if err != nil {
			return nil, models.MatchNone, fmt.Errorf("multimatch: get reference boundary: %w", err)
		}
	}

	info := models.NewDistrictInfo()
	resolvedAny := false

	for t, codes := range candidates {
		switch {
		case len(codes) == 0:
			continue
		case len(codes) == 1 && t != models.DistrictSenate:
			info.Entries[t] = &models.DistrictEntry{Type: t, Code: codes[0]}
			resolvedAny = true
		default:
			overlap, err := r.shapes.GetDistrictOverlap(ctx, t, codes, models.DistrictZip, zips)
			if err != nil {
				continue
			}
			entry := &models.DistrictEntry{Type: t, Overlap: overlap}
			if refMap.GeometryType != "" {
				entry.Map = &refMap
			}
			if single := singleIntersecting(overlap); single != "" {
				entry.Code = single
				resolvedAny = true
			} else if len(codes) == 1 {
				entry.Code = codes[0]
				resolvedAny = true
			}
			info.Entries[t] = entry
		}
	}

	if !resolvedAny {
		return info, models.MatchNone, nil
	}
	return info, level, nil
}

// selectLevel chooses STREET/ZIP5/CITY per §4.8's priority order and
// returns the zip set to search over.
func (r *Resolver) selectLevel(ctx context.Context, street models.StreetAddress, quality models.Quality) (models.MatchLevel, []string, error) {
	hasZip := street.Zip5 != ""

	if quality.AtLeast(models.QualityStreet) && hasZip {
		return models.MatchStreet, []string{street.Zip5}, nil
	}
	if quality.AtLeast(models.QualityStreet) && street.Location != "" {
		zips, err := r.streets.CityZipLookup(ctx, street.Location)
		if err != nil {
			return models.MatchNone, nil, err
		}
		return models.MatchStreet, zips, nil
	}
	if quality.AtLeast(models.QualityZip) && hasZip {
		return models.MatchZip5, []string{street.Zip5}, nil
	}
	if quality.AtLeast(models.QualityCity) && street.Location != "" {
		zips, err := r.streets.CityZipLookup(ctx, street.Location)
		if err != nil {
			return models.MatchNone, nil, err
		}
		return models.MatchCity, zips, nil
	}
	return models.MatchNone, nil, nil
}

// singleIntersecting returns the sole target code with nonzero overlap
// area, or "" if zero or more than one qualify.
func singleIntersecting(overlap *models.DistrictOverlap) string {
	if overlap == nil {
		return ""
	}
	var found string
	count := 0
	for code, area := range overlap.TargetAreas {
		if area > 0 {
			found = code
			count++
		}
	}
	if count == 1 {
		return found
	}
	return ""
}
