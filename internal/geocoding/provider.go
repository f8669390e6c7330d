package geocoding

import (
	"context"

	"github.com/nysage/atlas/internal/models"
)

// Provider is the GeocodeService contract from spec.md §6: a concrete
// geocoder implementation resolves a free-text address into a Geocode.
// Reverse geocoding is a separate, optional capability (ReverseProvider)
// since not every provider the registry carries supports it (Google,
// Nominatim and MapQuest, as wired here, are all forward-only).
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Geocode, error)
}

// ReverseProvider is implemented by providers capable of resolving a point
// back into an address-shaped Geocode (used by the point-input path of the
// resolution pipeline, spec.md §4.6).
type ReverseProvider interface {
	Provider
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.Geocode, error)
}
