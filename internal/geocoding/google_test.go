package geocoding_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

// fakeGoogleAPIClient is a hand-written stand-in for geocoding.GoogleAPIClient.
type fakeGoogleAPIClient struct {
	wantReq *maps.GeocodingRequest
	result  []maps.GeocodingResult
	err     error
}

func (f *fakeGoogleAPIClient) Geocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	if f.wantReq != nil && r.Address != f.wantReq.Address {
		return nil, assert.AnError
	}
	return f.result, f.err
}

func TestGeocode(t *testing.T) {
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		client := &fakeGoogleAPIClient{
			wantReq: &maps.GeocodingRequest{Address: address},
			err:     assert.AnError,
		}
		provider := geocoding.NewGoogleProvider(client, slog.Default())

		_, err := provider.Geocode(ctx, address)

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("api returns empty response", func(t *testing.T) {
		address := "some invalid place"
		client := &fakeGoogleAPIClient{
			wantReq: &maps.GeocodingRequest{Address: address},
			result:  nil,
		}
		provider := geocoding.NewGoogleProvider(client, slog.Default())

		geocode, err := provider.Geocode(ctx, address)

		require.Nil(t, geocode)
		require.ErrorIs(t, err, geocoding.ErrEmptyResponse)
	})

	t.Run("successful geocoding with rooftop precision", func(t *testing.T) {
		address := "1 Commerce Plaza, Albany, NY"
		client := &fakeGoogleAPIClient{
			wantReq: &maps.GeocodingRequest{Address: address},
			result: []maps.GeocodingResult{
				{
					Geometry: maps.AddressGeometry{
						Location:     maps.LatLng{Lat: 42.6517, Lng: -73.7553},
						LocationType: "ROOFTOP",
					},
				},
			},
		}
		provider := geocoding.NewGoogleProvider(client, slog.Default())

		geocode, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, geocode)
		require.InEpsilon(t, 42.6517, geocode.Lat, 0.01)
		require.InEpsilon(t, -73.7553, geocode.Lon, 0.01)
		assert.Equal(t, models.QualityHouse, geocode.Quality)
		assert.Equal(t, "google", geocode.Method)
	})

	t.Run("approximate location type degrades quality to city", func(t *testing.T) {
		address := "Albany, NY"
		client := &fakeGoogleAPIClient{
			wantReq: &maps.GeocodingRequest{Address: address},
			result: []maps.GeocodingResult{
				{
					Geometry: maps.AddressGeometry{
						Location:     maps.LatLng{Lat: 42.6526, Lng: -73.7562},
						LocationType: "APPROXIMATE",
					},
				},
			},
		}
		provider := geocoding.NewGoogleProvider(client, slog.Default())

		geocode, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		assert.Equal(t, models.QualityCity, geocode.Quality)
	})

	t.Run("geometric center maps to street quality", func(t *testing.T) {
		address := "State St, Albany, NY"
		client := &fakeGoogleAPIClient{
			wantReq: &maps.GeocodingRequest{Address: address},
			result: []maps.GeocodingResult{
				{
					Geometry: maps.AddressGeometry{
						Location:     maps.LatLng{Lat: 42.6526, Lng: -73.7562},
						LocationType: "GEOMETRIC_CENTER",
					},
				},
			},
		}
		provider := geocoding.NewGoogleProvider(client, slog.Default())

		geocode, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		assert.Equal(t, models.QualityStreet, geocode.Quality)
	})

	t.Run("unknown location type maps to unknown quality", func(t *testing.T) {
		address := "somewhere"
		client := &fakeGoogleAPIClient{
			wantReq: &maps.GeocodingRequest{Address: address},
			result: []maps.GeocodingResult{
				{
					Geometry: maps.AddressGeometry{
						Location:     maps.LatLng{Lat: 42.6526, Lng: -73.7562},
						LocationType: "",
					},
				},
			},
		}
		provider := geocoding.NewGoogleProvider(client, slog.Default())

		geocode, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		assert.Equal(t, models.QualityUnknown, geocode.Quality)
	})
}
