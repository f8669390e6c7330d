package models

import (
	"strconv"
	"strings"
)

// Address is a raw, unparsed postal address as received from a caller or an
// upstream batch job. It may be partially populated (e.g. city/state only).
type Address struct {
	Addr1 string
	Addr2 string
	City  string
	State string
	Zip5  string
	Zip4  string
}

// IsEmpty reports whether every field of the address is blank.
func (a Address) IsEmpty() bool {
	return a.Addr1 == "" && a.Addr2 == "" && a.City == "" && a.State == "" && a.Zip5 == "" && a.Zip4 == ""
}

// HasZip5 reports whether a well-formed 5 digit zip was supplied.
func (a Address) HasZip5() bool {
	return len(strings.TrimSpace(a.Zip5)) == 5
}

// StreetAddress is the parsed, normalized form of an Address produced by
// internal/addrparse. Street/type/directional fields are upper-cased
// canonical tokens; BldgNum of 0 means "absent".
type StreetAddress struct {
	BldgNum    int
	PreDir     string
	StreetName string
	StreetType string
	PostDir    string
	UnitType   string
	UnitNum    string
	Location   string // city
	State      string
	Zip5       string
	Zip4       string
	POBox      bool
	POBoxNum   int
	IsParsed   bool
}

// HasStreet reports whether the address carries a street name at all (as
// opposed to being a PO-box or a city/zip-only address).
func (s StreetAddress) HasStreet() bool {
	return strings.TrimSpace(s.StreetName) != ""
}

// Cacheable implements the §3 invariant: exactly one of {street populated,
// PO-box populated, city+state or zip5 only} qualifies an address for the
// geocode cache.
func (s StreetAddress) Cacheable() bool {
	if s.POBox {
		return s.Location != "" && s.State != "" || s.Zip5 != ""
	}
	if s.HasStreet() {
		return s.BldgNum > 0
	}
	return (s.Location != "" && s.State != "") || s.Zip5 != ""
}

// Retrievable implements the geocode cache lookup precondition of §4.2:
// either (street non-empty AND bldgNum > 0) or (street empty AND (city+state
// non-empty OR zip5 non-empty)).
func (s StreetAddress) Retrievable() bool {
	if s.HasStreet() {
		return s.BldgNum > 0
	}
	return (s.Location != "" && s.State != "") || s.Zip5 != ""
}

// ToAddress renders the parsed form back into a flat Address, e.g. for
// echoing a normalized address back to a caller.
func (s StreetAddress) ToAddress() Address {
	var line string
	switch {
	case s.POBox:
		line = strings.TrimSpace("PO Box " + strconv.Itoa(s.POBoxNum))
	case s.HasStreet():
		parts := []string{}
		if s.BldgNum > 0 {
			parts = append(parts, strconv.Itoa(s.BldgNum))
		}
		for _, p := range []string{s.PreDir, s.StreetName, s.StreetType, s.PostDir} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		line = strings.Join(parts, " ")
	}
	addr2 := ""
	if s.UnitType != "" || s.UnitNum != "" {
		addr2 = strings.TrimSpace(strings.Join([]string{s.UnitType, s.UnitNum}, " "))
	}
	return Address{
		Addr1: line,
		Addr2: addr2,
		City:  s.Location,
		State: s.State,
		Zip5:  s.Zip5,
		Zip4:  s.Zip4,
	}
}
