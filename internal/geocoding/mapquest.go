package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nysage/atlas/internal/models"
	"golang.org/x/time/rate"
)

// MapQuestBaseURL is the MapQuest Geocoding API base URL. MapQuest is one of
// the third-party geocoders the original service fell back to alongside
// Yahoo, Google, OSM and Tiger (spec.md §1).
const MapQuestBaseURL = "https://www.mapquestapi.com/geocoding/v1/address"

// MapQuestProvider implements geocoding using the MapQuest Geocoding API.
type MapQuestProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the MapQuest API
	apiKey  string        // API key with geocoding access
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// Common errors for the MapQuest provider.
var (
	ErrMapQuestEmptyResponse = errors.New("mapquest API returned empty response")
	ErrMapQuestEmptyAddress  = errors.New("mapquest provider got empty address")
	ErrMapQuestUnauthorized  = errors.New("mapquest API unauthorized (invalid API key)")
)

// mapquestResponse is the MapQuest geocode response, trimmed to the fields
// this provider needs.
type mapquestResponse struct {
	Results []struct {
		Locations []struct {
			LatLng struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"latLng"`
			GeocodeQuality string `json:"geocodeQuality"`
		} `json:"locations"`
	} `json:"results"`
}

// NewMapQuestProvider creates a new MapQuest geocoding provider.
func NewMapQuestProvider(apiKey string, rateLimit int, log *slog.Logger) *MapQuestProvider {
	const timeout = 10

	return &MapQuestProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: MapQuestBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
	}
}

// NewMapQuestProviderWithClient allows injecting a custom HTTP client and
// limiter, useful for testing.
func NewMapQuestProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *MapQuestProvider {
	return &MapQuestProvider{
		client:  client,
		baseURL: MapQuestBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts an address into a Geocode using the MapQuest API.
func (mp *MapQuestProvider) Geocode(ctx context.Context, address string) (*models.Geocode, error) {
	if err := mp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	mp.log.DebugContext(ctx, "Geocoding using MapQuest", "address", address)

	if address == "" {
		return nil, ErrMapQuestEmptyAddress
	}

	reqURL, err := url.Parse(mp.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("location", address)
	query.Set("maxResults", "1")
	query.Set("key", mp.apiKey)
	reqURL.RawQuery = query.Encode()

	mp.log.DebugContext(ctx, "MapQuest request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := mp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrMapQuestUnauthorized
	default:
		body, _ := io.ReadAll(resp.Body)
		mp.log.ErrorContext(ctx, "MapQuest API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("mapquest API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	mp.log.DebugContext(ctx, "MapQuest raw response", "body", string(body))

	var result mapquestResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode mapquest response: %w", err)
	}

	if len(result.Results) == 0 || len(result.Results[0].Locations) == 0 {
		return nil, ErrMapQuestEmptyResponse
	}

	loc := result.Results[0].Locations[0]
	mp.log.InfoContext(ctx, "MapQuest found result", "address", address, "lat", loc.LatLng.Lat, "lon", loc.LatLng.Lng)

	return &models.Geocode{
		Lat:     loc.LatLng.Lat,
		Lon:     loc.LatLng.Lng,
		Method:  "mapquest",
		Quality: mapquestQuality(loc.GeocodeQuality),
	}, nil
}

// mapquestQuality maps MapQuest's geocodeQuality tag onto our Quality scale.
func mapquestQuality(tag string) models.Quality {
	switch tag {
	case "POINT", "ADDRESS":
		return models.QualityHouse
	case "STREET":
		return models.QualityStreet
	case "ZIP", "ZIP_EXTENDED":
		return models.QualityZip
	case "COUNTY":
		return models.QualityCounty
	case "CITY":
		return models.QualityCity
	case "STATE":
		return models.QualityState
	default:
		return models.QualityUnknown
	}
}
