package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/registry"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
	// ProviderTypeMapQuest represents the MapQuest geocoding provider.
	ProviderTypeMapQuest ProviderType = "mapquest"
)

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType // Type of provider to create
	APIKey    string       // API key (used by Google/MapQuest providers)
	RateLimit int          // Rate limit for requests per second
	Logger    *slog.Logger // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
// It applies the Factory pattern to decouple provider instantiation from business logic.
//
// Supported provider types:
// - "google": Google Maps Geocoding API (requires API key)
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
// - "mapquest": MapQuest Geocoding API (requires API key)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeNominatim:
		return newNominatimProvider(config)
	case ProviderTypeMapQuest:
		return newMapQuestProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	// Create Google Maps client with API key and rate limiting
	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	// Apply rate limiting if specified
	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}

// newNominatimProvider creates a Nominatim geocoding provider.
func newNominatimProvider(config ProviderConfig) (Provider, error) {
	// Nominatim is free and doesn't require an API key
	return NewNominatimProvider(config.Logger), nil
}

// newMapQuestProvider creates a MapQuest geocoding provider.
func newMapQuestProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for MapQuest provider")
	}

	if config.RateLimit == 0 {
		config.RateLimit = 5
		config.Logger.Warn("Rate limit for MapQuest API not set, using a default value", "value", config.RateLimit)
	}

	return NewMapQuestProvider(config.APIKey, config.RateLimit, config.Logger), nil
}

// BuildRegistry registers every provider in configs into a fresh
// registry.Registry[Provider] (spec.md §4.1), sets the default and
// fallback chain, and marks the cacheable subset. This is the bootstrap
// wiring step performed once at startup; the registry is read-only
// thereafter (§5).
func BuildRegistry(
	configs []ProviderConfig,
	defaultType ProviderType,
	fallbackChain []ProviderType,
	cacheable []ProviderType,
) (*registry.Registry[Provider], error) {
	reg := registry.New[Provider]()

	for _, cfg := range configs {
		cfgCopy := cfg
		if _, err := NewProvider(cfgCopy); err != nil {
			return nil, fmt.Errorf("failed to validate provider %q: %w", cfgCopy.Type, err)
		}
		reg.Register(string(cfgCopy.Type), func() Provider {
			p, err := NewProvider(cfgCopy)
			if err != nil {
				return erroringProvider{err: err}
			}
			return p
		})
	}

	if defaultType != "" {
		if !reg.IsRegistered(string(defaultType)) {
			return nil, fmt.Errorf("default provider %q is not registered", defaultType)
		}
		for _, cfg := range configs {
			if !strings.EqualFold(string(cfg.Type), string(defaultType)) {
				continue
			}
			cfgCopy := cfg
			reg.RegisterDefault(string(cfgCopy.Type), func() Provider {
				p, err := NewProvider(cfgCopy)
				if err != nil {
					return erroringProvider{err: err}
				}
				return p
			})
		}
	}

	chain := make([]string, 0, len(fallbackChain))
	for _, t := range fallbackChain {
		chain = append(chain, string(t))
	}
	reg.SetFallbackChain(chain)

	for _, t := range cacheable {
		reg.MarkCacheable(string(t))
	}

	return reg, nil
}

// erroringProvider is substituted for a provider whose construction failed
// lazily (e.g. an API key revoked after the initial validation pass); its
// Geocode call always errors, which the fallback chain in
// internal/geocodepipeline handles the same as any other provider failure.
type erroringProvider struct{ err error }

func (e erroringProvider) Geocode(_ context.Context, _ string) (*models.Geocode, error) {
	return nil, e.err
}
