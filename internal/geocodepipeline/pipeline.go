// Package geocodepipeline implements the ordered fallback-chain geocoder of
// §4.5: consult the cache, then walk caller-provider/default/fallback-chain
// providers, writing cacheable successes back through. It extends the
// teacher's provider-invocation + write-back pattern
// (internal/service.GeocodingService.worker called provider.Geocode once
// and wrote results back) with the fallback-chain walk described by the
// original's ServiceProviders.newInstance(name, fallbackName) contract.
package geocodepipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nysage/atlas/internal/addrparse"
	"github.com/nysage/atlas/internal/batch"
	"github.com/nysage/atlas/internal/geocache"
	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/metrics"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/registry"
	"github.com/nysage/atlas/internal/resultstatus"
)

// ErrNoGeocodeResult is returned when every provider in the chain fails and
// no provider returned even a partial result.
var ErrNoGeocodeResult = errors.New("geocodepipeline: no geocode result")

// Request is one geocode request: the address to resolve plus the optional
// caller-requested provider name (empty = use the registry default).
type Request struct {
	Address  models.Address
	Provider string
}

// Pipeline is the cache-gated, fallback-chain-walking geocoder.
type Pipeline struct {
	registry *registry.Registry[geocoding.Provider]
	cache    *geocache.Cache
	log      *slog.Logger
	metrics  *metrics.Metrics

	concurrency int
}

// New constructs a Pipeline over the given provider registry and cache.
// concurrency <= 0 falls back to batch.DefaultConcurrency. m may be nil, in
// which case no metrics are recorded.
func New(reg *registry.Registry[geocoding.Provider], cache *geocache.Cache, log *slog.Logger, concurrency int, m *metrics.Metrics) *Pipeline {
	return &Pipeline{registry: reg, cache: cache, log: log, concurrency: concurrency, metrics: m}
}

// Geocode resolves a single request, per §4.5.
func (p *Pipeline) Geocode(ctx context.Context, req Request) (models.GeocodedAddress, error) {
	street, err := addrparse.Parse(req.Address)
	if err != nil {
		return models.GeocodedAddress{}, fmt.Errorf("geocodepipeline: parse address: %w", err)
	}

	lookupAddr := req.Address
	if street.POBox {
		lookupAddr.Addr1 = ""
	}

	if hit, err := p.cache.Lookup(ctx, street); err == nil && hit != nil && hit.Geocode.Quality.AtLeast(models.QualityHouse) {
		return *hit, nil
	}

	chain := p.providerChain(req.Provider)
	if len(chain) == 0 {
		return models.GeocodedAddress{}, ErrNoGeocodeResult
	}

	var lastResult models.GeocodedAddress
	var lastErr error

	for _, name := range chain {
		provider, ok := p.registry.NewInstance(name)
		if !ok {
			continue
		}

		start := time.Now()
		geo, err := provider.Geocode(ctx, formatForGeocode(lookupAddr))
		p.observeProviderCall(name, start, err)

		if err != nil {
			lastErr = err
			continue
		}
		if geo == nil || !geo.IsValid() {
			continue
		}

		result := models.GeocodedAddress{Address: req.Address, Street: street, Geocode: *geo}

		if !geo.Quality.AtLeast(models.QualityHouse) {
			lastResult = result
			continue
		}

		if p.registry.IsCacheable(name) {
			p.cache.Put(ctx, result)
		}

		p.observeOutcome("success")
		return result, nil
	}

	if lastResult.Geocode.IsValid() {
		p.observeOutcome("partial")
		return lastResult, nil
	}
	p.observeOutcome("failure")
	if lastErr != nil {
		return models.GeocodedAddress{}, fmt.Errorf("geocodepipeline: %w: %w", ErrNoGeocodeResult, lastErr)
	}
	return models.GeocodedAddress{}, ErrNoGeocodeResult
}

// providerChain builds the ordered name list to try: the caller-requested
// provider (if registered), else the default, followed by the fallback
// chain (deduplicated).
func (p *Pipeline) providerChain(requested string) []string {
	var chain []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		chain = append(chain, name)
	}

	if requested != "" && p.registry.IsRegistered(requested) {
		add(requested)
	} else {
		add(p.registry.DefaultName())
	}
	for _, name := range p.registry.FallbackChain() {
		add(name)
	}
	return chain
}

// observeProviderCall records a single provider invocation's duration and,
// on failure, bumps the API error counter.
func (p *Pipeline) observeProviderCall(provider string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RequestSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.APIErrors.Inc()
	}
}

// observeOutcome records the terminal outcome of a single Geocode call.
func (p *Pipeline) observeOutcome(status string) {
	if p.metrics == nil {
		return
	}
	p.metrics.TaskProcessed.WithLabelValues(status).Inc()
}

// GeocodeBatch fans a slice of requests out across a bounded worker pool
// when the caller has no native batch endpoint, reassembling results in
// input order, per §4.5's batch geocoding rule.
func (p *Pipeline) GeocodeBatch(ctx context.Context, reqs []Request) []batch.Result[models.GeocodedAddress] {
	concurrency := p.concurrency
	if concurrency <= 0 {
		concurrency = batch.DefaultConcurrency
	}
	if len(reqs) < concurrency {
		concurrency = len(reqs)
	}

	if p.metrics != nil {
		p.metrics.ActiveWorkers.Add(float64(concurrency))
		defer p.metrics.ActiveWorkers.Sub(float64(concurrency))
	}

	return batch.Run(ctx, reqs, concurrency, p.Geocode)
}

// formatForGeocode renders an Address into the single line string the
// geocoding.Provider interface expects.
func formatForGeocode(addr models.Address) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{addr.Addr1, addr.City, addr.State, addr.Zip5} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	out := ""
	for i, part := range parts {
		if i > 0 {
			out += ", "
		}
		out += part
	}
	return out
}

// StatusFor maps a Geocode error to the result status taxonomy of §7.
func StatusFor(err error) resultstatus.Code {
	if err == nil {
		return resultstatus.Success
	}
	if errors.Is(err, ErrNoGeocodeResult) {
		return resultstatus.NoGeocodeResult
	}
	return resultstatus.InternalError
}
