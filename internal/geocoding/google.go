package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nysage/atlas/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// ErrEmptyResponse is returned when the Google Maps API responds with an empty result.
var ErrEmptyResponse = errors.New("get empty response from Google Maps API")

// NewGoogleProvider initializes a new GoogleProvider with the given client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode takes a context and an address string and returns the Geocode
// (lat, lon, quality) of the provided address using the Google Maps
// Geocoding API. Quality is derived from Google's own location_type tag so
// the resolution pipeline can apply its HOUSE-quality gating rules
// without knowing anything about Google's API shape.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (*models.Geocode, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: address}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(geocodeResponse) == 0 {
		return nil, ErrEmptyResponse
	}
	result := geocodeResponse[0]
	coords := result.Geometry.Location

	return &models.Geocode{
		Lat:     coords.Lat,
		Lon:     coords.Lng,
		Method:  "google",
		Quality: googleLocationTypeQuality(result.Geometry.LocationType),
	}, nil
}

// googleLocationTypeQuality maps Google's location_type tag to our Quality
// scale. See https://developers.google.com/maps/documentation/geocoding/requests-geocoding#Results.
func googleLocationTypeQuality(locationType string) models.Quality {
	switch locationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		return models.QualityHouse
	case "GEOMETRIC_CENTER":
		return models.QualityStreet
	case "APPROXIMATE":
		return models.QualityCity
	default:
		return models.QualityUnknown
	}
}
