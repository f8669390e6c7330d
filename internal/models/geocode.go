package models

// Quality is a total-ordered tag indicating geocode precision. All
// comparisons used by the pipeline are "at least" comparisons, hence the
// AtLeast helper rather than exposing the raw ordinal.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityState
	QualityCounty
	QualityCity
	QualityZip
	QualityStreet
	QualityHouse
	QualityPoint
)

func (q Quality) String() string {
	switch q {
	case QualityState:
		return "STATE"
	case QualityCounty:
		return "COUNTY"
	case QualityCity:
		return "CITY"
	case QualityZip:
		return "ZIP"
	case QualityStreet:
		return "STREET"
	case QualityHouse:
		return "HOUSE"
	case QualityPoint:
		return "POINT"
	default:
		return "UNKNOWN"
	}
}

// AtLeast reports whether q is at least as precise as min.
func (q Quality) AtLeast(min Quality) bool {
	return q >= min
}

// Geocode is a single (lat, lon) resolution of an address or point, tagged
// with the provider that produced it and its precision.
type Geocode struct {
	Lat     float64
	Lon     float64
	Method  string
	Quality Quality
	Cached  bool
}

// IsValid mirrors the source's "valid geocode" predicate: a non-zero
// coordinate pair with a known quality.
func (g Geocode) IsValid() bool {
	return (g.Lat != 0 || g.Lon != 0) && g.Quality != QualityUnknown
}

// GeocodedAddress pairs a (possibly validated/normalized) Address with its
// Geocode. Either half may be empty; the pair is valid iff both halves are.
type GeocodedAddress struct {
	Address Address
	Street  StreetAddress
	Geocode Geocode
}

// IsValid reports whether both the address and the geocode independently
// validate.
func (g GeocodedAddress) IsValid() bool {
	return !g.Address.IsEmpty() && g.Geocode.IsValid()
}
