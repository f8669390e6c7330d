// Package addrmodel holds the normalization token tables internal/addrparse
// uses to canonicalize free-text addresses: directionals, street-type
// abbreviations, and unit-type abbreviations, each keyed by every spelling
// variant a caller might submit and valued by the canonical upper-case form
// the rest of the system expects.
package addrmodel

// Directionals maps every spelling of a directional prefix/suffix to its
// canonical two-letter-or-less form.
var Directionals = map[string]string{
	"N": "N", "NORTH": "N",
	"S": "S", "SOUTH": "S",
	"E": "E", "EAST": "E",
	"W": "W", "WEST": "W",
	"NE": "NE", "NORTHEAST": "NE",
	"NW": "NW", "NORTHWEST": "NW",
	"SE": "SE", "SOUTHEAST": "SE",
	"SW": "SW", "SOUTHWEST": "SW",
}

// StreetTypes maps common street-type spellings (including USPS C1
// abbreviations) to the canonical abbreviation used internally.
var StreetTypes = map[string]string{
	"STREET": "ST", "ST": "ST",
	"AVENUE": "AVE", "AVE": "AVE", "AV": "AVE",
	"BOULEVARD": "BLVD", "BLVD": "BLVD",
	"DRIVE": "DR", "DR": "DR",
	"LANE": "LN", "LN": "LN",
	"ROAD": "RD", "RD": "RD",
	"COURT": "CT", "CT": "CT",
	"CIRCLE": "CIR", "CIR": "CIR",
	"PLACE": "PL", "PL": "PL",
	"TERRACE": "TER", "TER": "TER",
	"WAY": "WAY",
	"HIGHWAY": "HWY", "HWY": "HWY",
	"PARKWAY": "PKWY", "PKWY": "PKWY",
	"SQUARE": "SQ", "SQ": "SQ",
	"TRAIL": "TRL", "TRL": "TRL",
	"LOOP": "LOOP",
	"ALLEY": "ALY", "ALY": "ALY",
	"EXTENSION": "EXT", "EXT": "EXT",
}

// UnitTypes maps common secondary-address unit designators to their
// canonical abbreviation.
var UnitTypes = map[string]string{
	"APARTMENT": "APT", "APT": "APT",
	"SUITE": "STE", "STE": "STE",
	"UNIT": "UNIT",
	"FLOOR": "FL", "FL": "FL",
	"BUILDING": "BLDG", "BLDG": "BLDG",
	"ROOM": "RM", "RM": "RM",
	"BASEMENT": "BSMT", "BSMT": "BSMT",
}
