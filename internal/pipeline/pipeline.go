// Package pipeline implements the top-level district resolution
// orchestrator of §4.6: parse, optionally USPS-validate, geocode, assign
// districts (standard or multi-match depending on achieved quality), map
// assignment, and optional member-metadata attachment. It composes every
// other core package (addrparse, usps, geocodepipeline, districtassign,
// multimatch, shapefile) the way the original's DistrictService composed
// its collaborators, wrapping cross-stage errors with
// github.com/rotisserie/eris so a failure deep in a five-stage pipeline
// carries a readable stack, following sells-group-research-cli's usage of
// eris in its own multi-stage command pipelines.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nysage/atlas/internal/addrparse"
	"github.com/nysage/atlas/internal/districtassign"
	"github.com/nysage/atlas/internal/geocodepipeline"
	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/metrics"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/multimatch"
	"github.com/nysage/atlas/internal/registry"
	"github.com/nysage/atlas/internal/resultstatus"
	"github.com/nysage/atlas/internal/shapefile"
	"github.com/nysage/atlas/internal/usps"
	"github.com/rotisserie/eris"
)

// MemberProvider attaches member metadata (senator/assemblyman/etc.) keyed
// by district code, per §4.6 step 8. No member-roster data source appears
// anywhere in the retrieval pack, so the default implementation
// (noMemberProvider) returns no members; a real deployment supplies its own
// MemberProvider wired in at cmd/main.go.
type MemberProvider interface {
	MembersFor(ctx context.Context, info *models.DistrictInfo) (map[models.DistrictType]Member, error)
}

// Member is one elected official's metadata.
type Member struct {
	Name   string
	Title  string
	URL    string
}

type noMemberProvider struct{}

func (noMemberProvider) MembersFor(context.Context, *models.DistrictInfo) (map[models.DistrictType]Member, error) {
	return nil, nil
}

// DistrictStrategy names how district assignment resolves, per the
// caller-supplied districtStrategy flag.
type DistrictStrategy string

const (
	// StrategyDefault runs the shapefile/streetfile consolidation of §4.7.
	StrategyDefault DistrictStrategy = ""
	// StrategyShapefile forces the shapefile-only lookup, skipping streetfile
	// reconciliation entirely.
	StrategyShapefile DistrictStrategy = "shapefile"
	// StrategyStreetfile forces the streetfile-only lookup.
	StrategyStreetfile DistrictStrategy = "streetfile"
)

// Request is one district resolution request: either Address or Point must
// be set (not both), plus the flags named by §4.6.
type Request struct {
	Address *models.Address
	Point   *models.LatLon

	USPSValidate     bool
	SkipGeocode      bool
	ShowMaps         bool
	ShowMembers      bool
	DistrictStrategy DistrictStrategy
	Provider         string // geocode provider name
	GeoProvider      string // reverse-geocode provider name, point input only
}

// Pipeline is the top-level orchestrator.
type Pipeline struct {
	geocode    *geocodepipeline.Pipeline
	assigner   *districtassign.Assigner
	multimatch *multimatch.Resolver
	shapes     *shapefile.Store
	usps       *usps.Service
	reverse    *registry.Registry[geocoding.Provider]
	members    MemberProvider
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// New constructs a Pipeline. members may be nil, in which case no member
// metadata is ever attached. m may be nil, in which case no metrics are
// recorded.
func New(
	geocode *geocodepipeline.Pipeline,
	assigner *districtassign.Assigner,
	resolver *multimatch.Resolver,
	shapes *shapefile.Store,
	uspsSvc *usps.Service,
	reverseRegistry *registry.Registry[geocoding.Provider],
	members MemberProvider,
	log *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	if members == nil {
		members = noMemberProvider{}
	}
	return &Pipeline{
		geocode: geocode, assigner: assigner, multimatch: resolver,
		shapes: shapes, usps: uspsSvc, reverse: reverseRegistry,
		members: members, log: log, metrics: m,
	}
}

// Resolve runs §4.6's procedure for either address or point input.
func (p *Pipeline) Resolve(ctx context.Context, req Request) (*models.DistrictResult, error) {
	start := time.Now()
	var result *models.DistrictResult
	var err error

	if req.Point != nil {
		result, err = p.resolvePoint(ctx, req)
	} else {
		result, err = p.resolveAddress(ctx, req)
	}

	if p.metrics != nil && err == nil && result != nil {
		p.metrics.ResolutionSeconds.Observe(time.Since(start).Seconds())
		p.metrics.ResolutionsTotal.WithLabelValues(string(result.MatchLevel)).Inc()
	}
	return result, err
}

func (p *Pipeline) resolveAddress(ctx context.Context, req Request) (*models.DistrictResult, error) {
	addr := *req.Address

	// Input validation fails fast at the pipeline entry: no provider
	// (USPS, geocoder) is ever invoked for a state the service doesn't
	// cover.
	if isNonNYState(addr.State) {
		return &models.DistrictResult{
			GeocodedAddress: models.GeocodedAddress{Address: addr},
			DistrictInfo:    models.NewDistrictInfo(),
			MatchLevel:      models.MatchNone,
			StatusCode:      int(resultstatus.NonNYState),
			Message:         resultstatus.NonNYState.Desc(),
		}, nil
	}

	if req.USPSValidate && p.usps != nil {
		validated := p.validateWithFallback(ctx, addr)
		addr = validated
	}

	var geocoded models.GeocodedAddress
	uspsValidated := req.USPSValidate

	if req.SkipGeocode {
		geocoded = models.GeocodedAddress{Address: addr}
	} else {
		result, err := p.geocode.Geocode(ctx, geocodepipeline.Request{Address: addr, Provider: req.Provider})
		if err != nil {
			return &models.DistrictResult{
				GeocodedAddress: models.GeocodedAddress{Address: addr},
				DistrictInfo:    models.NewDistrictInfo(),
				MatchLevel:      models.MatchNone,
				StatusCode:      int(geocodepipeline.StatusFor(err)),
				Message:         err.Error(),
			}, nil
		}
		geocoded = result
	}

	return p.assignAndFinish(ctx, req, geocoded, uspsValidated)
}

func (p *Pipeline) resolvePoint(ctx context.Context, req Request) (*models.DistrictResult, error) {
	provider, ok := p.lookupReverseProvider(req.GeoProvider)
	if !ok {
		return &models.DistrictResult{
			DistrictInfo: models.NewDistrictInfo(),
			MatchLevel:   models.MatchNone,
			StatusCode:   int(resultstatus.NoGeocodeResult),
			Message:      "no reverse geocode provider available",
		}, nil
	}

	geo, err := provider.ReverseGeocode(ctx, req.Point.Lat, req.Point.Lon)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reverse geocode")
	}
	if geo != nil {
		geo.Quality = models.QualityPoint
	}

	geocoded := models.GeocodedAddress{Geocode: *geo}
	return p.assignAndFinish(ctx, req, geocoded, false)
}

func (p *Pipeline) lookupReverseProvider(name string) (geocoding.ReverseProvider, bool) {
	if p.reverse == nil {
		return nil, false
	}
	if name == "" {
		name = p.reverse.DefaultName()
	}
	instance, ok := p.reverse.NewInstance(name)
	if !ok {
		return nil, false
	}
	rp, ok := instance.(geocoding.ReverseProvider)
	return rp, ok
}

// isNonNYState reports whether state is a non-empty, explicitly non-NY
// state. A blank state (e.g. zip-only input) is not rejected here — it has
// nothing to reject against yet.
func isNonNYState(state string) bool {
	s := strings.ToUpper(strings.TrimSpace(state))
	return s != "" && s != "NY"
}

func (p *Pipeline) validateWithFallback(ctx context.Context, addr models.Address) models.Address {
	result, err := p.usps.Validate(ctx, addr)
	if err != nil {
		p.log.WarnContext(ctx, "pipeline: usps validation request failed, using raw address", "error", err)
		return addr
	}
	if !result.IsValidated {
		p.log.InfoContext(ctx, "pipeline: usps rejected address, retrying with raw address", "messages", result.Messages)
		return addr
	}
	return result.Address
}

func (p *Pipeline) assignAndFinish(
	ctx context.Context,
	req Request,
	geocoded models.GeocodedAddress,
	uspsValidated bool,
) (*models.DistrictResult, error) {
	street := geocoded.Street
	if !street.IsParsed {
		street, _ = addrparse.Parse(geocoded.Address)
	}

	pt := models.LatLon{Lat: geocoded.Geocode.Lat, Lon: geocoded.Geocode.Lon}

	var info *models.DistrictInfo
	var level models.MatchLevel
	var err error

	useStandard := geocoded.Geocode.Quality.AtLeast(models.QualityHouse) || street.POBox

	switch {
	case useStandard && req.DistrictStrategy == StrategyShapefile:
		info, err = p.assigner.AssignShapefileOnly(ctx, pt)
		level = models.MatchHouse
	case useStandard && req.DistrictStrategy == StrategyStreetfile:
		info, err = p.assigner.AssignStreetfileOnly(ctx, street)
		level = models.MatchHouse
	case useStandard:
		info, err = p.assigner.Assign(ctx, pt, street)
		level = models.MatchHouse
	default:
		info, level, err = p.multimatch.Resolve(ctx, street, geocoded.Geocode.Quality)
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: district assignment")
	}
	if info == nil {
		info = models.NewDistrictInfo()
	}

	outAddr := geocoded.Address
	if street.POBox && !uspsValidated {
		outAddr.Addr1 = street.ToAddress().Addr1
	}
	geocoded.Address = outAddr

	if req.ShowMaps {
		p.attachMaps(ctx, info)
	}

	if req.ShowMembers {
		if members, merr := p.members.MembersFor(ctx, info); merr == nil {
			attachMembers(info, members)
		} else {
			p.log.WarnContext(ctx, "pipeline: member lookup failed", "error", merr)
		}
	}

	return &models.DistrictResult{
		GeocodedAddress: geocoded,
		DistrictInfo:    info,
		MatchLevel:      level,
		StatusCode:      int(districtStatus(info, useStandard)),
	}, nil
}

// districtStatus implements §7's partial/multiple-match distinction. The
// standard (shapefile/streetfile) path is judged against the full requested
// type set: every type resolved is SUCCESS, some resolved is
// PARTIAL_DISTRICT_RESULT, and any type the §4.7 consolidator could not
// settle between disagreeing sources (UncertainDistricts) is
// MULTIPLE_DISTRICT_RESULT. The multi-match path (§4.8) already encodes its
// own success condition in the achieved MatchLevel — status is SUCCESS if
// any district code was resolved, else NO_DISTRICT_RESULT — since an overlap
// with several intersecting candidates there is the expected shape of a
// city/zip-level match, not an error condition.
func districtStatus(info *models.DistrictInfo, standard bool) resultstatus.Code {
	if !standard {
		if len(info.AssignedDistricts()) == 0 {
			return resultstatus.NoDistrictResult
		}
		return resultstatus.Success
	}

	resolved := len(info.AssignedDistricts())
	switch {
	case resolved == 0:
		return resultstatus.NoDistrictResult
	case len(info.UncertainDistricts) > 0:
		return resultstatus.MultipleDistrictResult
	case resolved < len(models.AllDistrictTypes):
		return resultstatus.PartialDistrictResult
	default:
		return resultstatus.Success
	}
}

func (p *Pipeline) attachMaps(ctx context.Context, info *models.DistrictInfo) {
	for t, entry := range info.Entries {
		if entry.Map != nil || entry.Code == "" {
			continue
		}
		m, err := p.shapes.GetDistrictMapByCode(ctx, t, entry.Code)
		if err != nil {
			p.log.WarnContext(ctx, "pipeline: map assignment failed", "type", t, "code", entry.Code, "error", err)
			continue
		}
		entry.Map = m
	}
}

func attachMembers(info *models.DistrictInfo, members map[models.DistrictType]Member) {
	for t, entry := range info.Entries {
		m, ok := members[t]
		if !ok {
			continue
		}
		if entry.Name == "" {
			entry.Name = m.Name
		}
	}
}
