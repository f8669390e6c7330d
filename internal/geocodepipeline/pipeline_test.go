package geocodepipeline_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nysage/atlas/internal/geocache"
	"github.com/nysage/atlas/internal/geocodepipeline"
	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/registry"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	geo *models.Geocode
	err error
}

func (f fakeProvider) Geocode(_ context.Context, _ string) (*models.Geocode, error) {
	return f.geo, f.err
}

func newPipeline(t *testing.T) (*geocodepipeline.Pipeline, pgxmock.PgxPoolIface, *registry.Registry[geocoding.Provider]) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	reg := registry.New[geocoding.Provider]()
	cache := geocache.New(mock, slog.Default(), geocache.DefaultBufferSize, nil)
	p := geocodepipeline.New(reg, cache, slog.Default(), 2, nil)
	return p, mock, reg
}

func TestGeocode_CacheHitShortCircuits(t *testing.T) {
	t.Parallel()
	p, mock, reg := newPipeline(t)
	reg.RegisterDefault("google", func() geocoding.Provider {
		t.Fatal("provider should not be called on a cache hit")
		return nil
	})

	mock.ExpectQuery(".*").
		WithArgs(200, "", "STATE", "", "ST", "12210", "ALBANY", "NY").
		WillReturnRows(pgxmock.NewRows([]string{
			"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
			"lat", "lon", "method", "quality",
		}).AddRow(200, "", "STATE", "ST", "", "ALBANY", "NY", "12210", 42.65, -73.75, "google", int(models.QualityHouse)))

	result, err := p.Geocode(t.Context(), geocodepipeline.Request{
		Address: models.Address{Addr1: "200 State St", City: "Albany", State: "NY", Zip5: "12210"},
	})

	require.NoError(t, err)
	assert.True(t, result.Geocode.Cached)
}

func TestGeocode_FallsThroughChainOnFailure(t *testing.T) {
	t.Parallel()
	p, mock, reg := newPipeline(t)

	mock.ExpectQuery(".*").WillReturnRows(pgxmock.NewRows([]string{
		"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
		"lat", "lon", "method", "quality",
	}))

	reg.RegisterDefault("google", func() geocoding.Provider {
		return fakeProvider{err: assert.AnError}
	})
	reg.Register("nominatim", func() geocoding.Provider {
		return fakeProvider{geo: &models.Geocode{Lat: 42.65, Lon: -73.75, Quality: models.QualityHouse}}
	})
	reg.SetFallbackChain([]string{"nominatim"})
	reg.MarkCacheable("nominatim")

	mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := p.Geocode(t.Context(), geocodepipeline.Request{
		Address: models.Address{Addr1: "200 State St", City: "Albany", State: "NY", Zip5: "12210"},
	})

	require.NoError(t, err)
	assert.Equal(t, models.QualityHouse, result.Geocode.Quality)
}

func TestGeocode_AllProvidersFail(t *testing.T) {
	t.Parallel()
	p, mock, reg := newPipeline(t)

	mock.ExpectQuery(".*").WillReturnRows(pgxmock.NewRows([]string{
		"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
		"lat", "lon", "method", "quality",
	}))

	reg.RegisterDefault("google", func() geocoding.Provider {
		return fakeProvider{err: assert.AnError}
	})

	_, err := p.Geocode(t.Context(), geocodepipeline.Request{
		Address: models.Address{Addr1: "1 Nowhere Rd", City: "Albany", State: "NY"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, geocodepipeline.ErrNoGeocodeResult)
}

func TestGeocode_POBoxBlanksAddressLineBeforeGeocoding(t *testing.T) {
	t.Parallel()
	p, mock, reg := newPipeline(t)

	mock.ExpectQuery(".*").WillReturnRows(pgxmock.NewRows([]string{
		"bldg_num", "pre_dir", "street_name", "street_type", "post_dir", "city", "state", "zip5",
		"lat", "lon", "method", "quality",
	}))

	var sawAddr string
	reg.RegisterDefault("google", func() geocoding.Provider {
		return fakeProviderFunc(func(_ context.Context, addr string) (*models.Geocode, error) {
			sawAddr = addr
			return &models.Geocode{Lat: 42.6, Lon: -73.7, Quality: models.QualityZip}, nil
		})
	})

	_, _ = p.Geocode(t.Context(), geocodepipeline.Request{
		Address: models.Address{Addr1: "PO Box 7016", City: "Albany", State: "NY", Zip5: "12225"},
	})

	assert.NotContains(t, sawAddr, "Box")
}

type fakeProviderFunc func(context.Context, string) (*models.Geocode, error)

func (f fakeProviderFunc) Geocode(ctx context.Context, addr string) (*models.Geocode, error) {
	return f(ctx, addr)
}
