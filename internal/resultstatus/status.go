// Package resultstatus defines the status-code taxonomy every pipeline
// result carries (spec.md §7). Numeric values are taken from the original
// gov.nysenate.sage ResultStatus enum so that any client built against the
// historical API keeps working unchanged.
package resultstatus

// Code is a result status code.
type Code int

const (
	Success Code = 0

	ServiceNotSupported Code = 1
	ProviderNotSupported Code = 2
	FeatureNotSupported  Code = 3

	APIKeyInvalid Code = 10
	APIKeyMissing Code = 11

	APIRequestInvalid          Code = 20
	APIInputFormatUnsupported  Code = 21
	APIOutputFormatUnsupported Code = 22

	ResponseMissingError Code = 90
	ResponseParseError   Code = 91

	MissingInputParams Code = 100
	MissingAddress     Code = 110
	MissingGeocode     Code = 120
	MissingZipcode     Code = 130
	MissingState       Code = 140
	MissingPoint       Code = 150

	InvalidInputParams Code = 200
	InvalidAddress     Code = 210
	InvalidGeocode     Code = 220
	InvalidZipcode     Code = 230
	InvalidState       Code = 240

	InsufficientInputParams Code = 300
	InsufficientAddress     Code = 310
	InsufficientGeocode     Code = 310

	NoDistrictResult       Code = 400
	MultipleDistrictResult Code = 401
	NoGeocodeResult        Code = 410
	NoReverseGeocodeResult Code = 411
	NoAddressValidateResult Code = 420

	PartialDistrictResult Code = 430

	NonNYState Code = 440

	InternalError              Code = 500
	DatabaseError              Code = 501
	ResponseError              Code = 502
	ResponseSerializationError Code = 503
)

var descriptions = map[Code]string{
	Success: "Success.",

	ServiceNotSupported:  "The requested service is unsupported.",
	ProviderNotSupported: "The requested provider is unsupported.",
	FeatureNotSupported:  "The requested feature is unsupported.",

	APIKeyInvalid: "The supplied API key could not be authenticated.",
	APIKeyMissing: "An API key is required.",

	APIRequestInvalid:          "The request is not in a valid format.",
	APIInputFormatUnsupported:  "The requested input format is currently not supported.",
	APIOutputFormatUnsupported: "The requested output format is currently not supported.",

	ResponseMissingError: "No response from service provider.",
	ResponseParseError:   "Error parsing response from service provider.",

	MissingInputParams: "One or more parameters are missing.",
	MissingAddress:      "An address is required.",
	MissingGeocode:      "A valid geocoded coordinate pair is required.",
	MissingZipcode:      "A zipcode is required.",
	MissingState:        "A state is required.",
	MissingPoint:        "A coordinate pair is required.",

	InvalidInputParams: "One or more parameters are invalid.",
	InvalidAddress:     "The supplied address is invalid.",
	InvalidGeocode:     "The supplied geocoded coordinate pair is invalid.",
	InvalidZipcode:     "The supplied zipcode is invalid.",
	InvalidState:       "The supplied state is invalid or is not supported.",

	InsufficientInputParams: "One or more parameters are insufficient.",
	InsufficientAddress:     "The supplied address is missing one or more parameters.",

	NoDistrictResult:        "District assignment returned no results.",
	MultipleDistrictResult:  "Multiple matches were found for certain districts.",
	NoGeocodeResult:         "Geocode service returned no results.",
	NoReverseGeocodeResult:  "Reverse geocode service returned no results.",
	NoAddressValidateResult: "The address could not be validated.",

	PartialDistrictResult: "District assignment yielded some districts.",

	NonNYState: "The supplied address is not within New York State.",

	InternalError:              "Internal Server Error.",
	DatabaseError:              "Database Error.",
	ResponseError:              "Application failed to provide a response.",
	ResponseSerializationError: "Failed to serialize response.",
}

// Desc returns the human-readable description for a code.
func (c Code) Desc() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return "Unknown status."
}

// IsSuccess reports whether the code represents full or partial success.
func (c Code) IsSuccess() bool {
	return c == Success || c == PartialDistrictResult || c == MultipleDistrictResult
}
