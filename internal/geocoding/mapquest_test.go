package geocoding_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMapQuestProvider_Geocode(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	limiter := rate.NewLimiter(rate.Inf, 0)

	t.Run("successful geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "GET", req.Method)
				assert.Contains(t, req.URL.String(), "mapquestapi.com")
				assert.Equal(t, "1 Commerce Plaza, Albany, NY", req.URL.Query().Get("location"))
				assert.Equal(t, "test-key", req.URL.Query().Get("key"))

				body := `{"results":[{"locations":[{"latLng":{"lat":42.6517,"lng":-73.7553},"geocodeQuality":"POINT"}]}]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(body)),
				}, nil
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "1 Commerce Plaza, Albany, NY")

		require.NoError(t, err)
		require.NotNil(t, geocode)
		assert.InEpsilon(t, 42.6517, geocode.Lat, 0.0001)
		assert.InEpsilon(t, -73.7553, geocode.Lon, 0.0001)
		assert.Equal(t, "mapquest", geocode.Method)
		assert.Equal(t, models.QualityHouse, geocode.Quality)
	})

	t.Run("empty address", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("should not make HTTP request for empty address")
				return nil, nil
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "")

		require.Error(t, err)
		require.Nil(t, geocode)
		assert.ErrorIs(t, err, geocoding.ErrMapQuestEmptyAddress)
	})

	t.Run("empty response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				body := `{"results":[{"locations":[]}]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(body)),
				}, nil
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "nowhere")

		require.Error(t, err)
		require.Nil(t, geocode)
		assert.ErrorIs(t, err, geocoding.ErrMapQuestEmptyResponse)
	})

	t.Run("unauthorized response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusUnauthorized,
					Body:       io.NopCloser(bytes.NewBufferString(`{}`)),
				}, nil
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "bad-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "1 Commerce Plaza, Albany, NY")

		require.Error(t, err)
		require.Nil(t, geocode)
		assert.ErrorIs(t, err, geocoding.ErrMapQuestUnauthorized)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusInternalServerError,
					Body:       io.NopCloser(bytes.NewBufferString(`{"error":"boom"}`)),
				}, nil
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "1 Commerce Plaza, Albany, NY")

		require.Error(t, err)
		require.Nil(t, geocode)
		assert.Contains(t, err.Error(), "mapquest API returned status 500")
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(`not json`)),
				}, nil
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "1 Commerce Plaza, Albany, NY")

		require.Error(t, err)
		require.Nil(t, geocode)
		assert.Contains(t, err.Error(), "failed to decode mapquest response")
	})

	t.Run("HTTP client error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
		geocode, err := provider.Geocode(ctx, "1 Commerce Plaza, Albany, NY")

		require.Error(t, err)
		require.Nil(t, geocode)
		assert.Contains(t, err.Error(), "failed to execute geocoding request")
	})
}

func TestMapQuestQualityMapping(t *testing.T) {
	logger := slog.Default()
	limiter := rate.NewLimiter(rate.Inf, 0)

	tests := []struct {
		tag  string
		want models.Quality
	}{
		{"POINT", models.QualityHouse},
		{"ADDRESS", models.QualityHouse},
		{"STREET", models.QualityStreet},
		{"ZIP", models.QualityZip},
		{"ZIP_EXTENDED", models.QualityZip},
		{"COUNTY", models.QualityCounty},
		{"CITY", models.QualityCity},
		{"STATE", models.QualityState},
		{"COUNTRY", models.QualityUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.tag, func(t *testing.T) {
			mockClient := &mockHTTPClient{
				doFunc: func(_ *http.Request) (*http.Response, error) {
					body := `{"results":[{"locations":[{"latLng":{"lat":1,"lng":2},"geocodeQuality":"` + tc.tag + `"}]}]}`
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(bytes.NewBufferString(body)),
					}, nil
				},
			}
			provider := geocoding.NewMapQuestProviderWithClient(mockClient, "test-key", limiter, logger)
			geocode, err := provider.Geocode(context.Background(), "addr")

			require.NoError(t, err)
			assert.Equal(t, tc.want, geocode.Quality)
		})
	}
}

func TestNewMapQuestProvider(t *testing.T) {
	provider := geocoding.NewMapQuestProvider("test-key", 5, slog.Default())

	require.NotNil(t, provider)
}
