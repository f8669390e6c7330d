// Package addrparse normalizes a raw models.Address into the canonical
// upper-cased models.StreetAddress form the rest of the pipeline operates
// on: building number, pre/post directional, street name, street type,
// unit, PO-box detection. This mirrors the normalization the original USPS
// provider performed on the address line before submission, generalized
// into a standalone parser every provider and the geocode cache share.
package addrparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nysage/atlas/internal/addrmodel"
	"github.com/nysage/atlas/internal/models"
)

// poBoxPattern matches "PO Box 123", "P.O. Box 123", "Post Office Box 123"
// in any case, with or without punctuation.
var poBoxPattern = regexp.MustCompile(`(?i)^\s*(?:P\.?\s?O\.?|POST\s+OFFICE)\s*BOX\s*#?\s*(\d+)\s*$`)

// unitLinePattern splits "APT 4B" / "SUITE 200" into type + number.
var unitLinePattern = regexp.MustCompile(`(?i)^\s*([A-Za-z]+)\.?\s*#?\s*([A-Za-z0-9-]*)\s*$`)

// Parse normalizes a raw Address into a StreetAddress. It never returns an
// error for well-formed-but-unparseable input (e.g. a bare city name); it
// returns IsParsed=true with whatever City/State/Zip fields were supplied,
// since most of the pipeline's "retrievable" and "cacheable" checks rely on
// those fields being preserved even when no street line exists.
func Parse(addr models.Address) (models.StreetAddress, error) {
	out := models.StreetAddress{
		Location: strings.ToUpper(strings.TrimSpace(addr.City)),
		State:    strings.ToUpper(strings.TrimSpace(addr.State)),
		Zip5:     strings.TrimSpace(addr.Zip5),
		Zip4:     strings.TrimSpace(addr.Zip4),
	}

	line := strings.TrimSpace(addr.Addr1)
	if line == "" {
		out.IsParsed = true
		return out, nil
	}

	if m := poBoxPattern.FindStringSubmatch(line); m != nil {
		out.POBox = true
		boxNum, err := strconv.Atoi(m[1])
		if err == nil {
			out.POBoxNum = boxNum
		}
		out.IsParsed = true
		parseUnit(addr.Addr2, &out)
		return out, nil
	}

	tokens := strings.Fields(strings.ToUpper(line))
	if len(tokens) == 0 {
		out.IsParsed = true
		return out, nil
	}

	idx := 0

	if bldg, err := strconv.Atoi(tokens[idx]); err == nil {
		out.BldgNum = bldg
		idx++
	}

	if idx < len(tokens) {
		if dir, ok := addrmodel.Directionals[tokens[idx]]; ok {
			out.PreDir = dir
			idx++
		}
	}

	streetTypeIdx := -1
	for i := len(tokens) - 1; i >= idx; i-- {
		if st, ok := addrmodel.StreetTypes[tokens[i]]; ok {
			out.StreetType = st
			streetTypeIdx = i
			break
		}
	}

	postDirIdx := -1
	if streetTypeIdx >= 0 && streetTypeIdx+1 < len(tokens) {
		if dir, ok := addrmodel.Directionals[tokens[streetTypeIdx+1]]; ok {
			out.PostDir = dir
			postDirIdx = streetTypeIdx + 1
		}
	} else if streetTypeIdx < 0 && len(tokens) > idx {
		if dir, ok := addrmodel.Directionals[tokens[len(tokens)-1]]; ok {
			out.PostDir = dir
			postDirIdx = len(tokens) - 1
		}
	}

	streetEnd := len(tokens)
	if streetTypeIdx >= 0 {
		streetEnd = streetTypeIdx
	} else if postDirIdx >= 0 {
		streetEnd = postDirIdx
	}

	if idx < streetEnd {
		out.StreetName = strings.Join(tokens[idx:streetEnd], " ")
	}

	out.IsParsed = true
	parseUnit(addr.Addr2, &out)

	return out, nil
}

// parseUnit splits a free-text secondary-address line into UnitType/UnitNum.
func parseUnit(addr2 string, out *models.StreetAddress) {
	addr2 = strings.TrimSpace(addr2)
	if addr2 == "" {
		return
	}

	m := unitLinePattern.FindStringSubmatch(addr2)
	if m == nil {
		out.UnitNum = strings.ToUpper(addr2)
		return
	}

	typeToken := strings.ToUpper(m[1])
	if canon, ok := addrmodel.UnitTypes[typeToken]; ok {
		out.UnitType = canon
		out.UnitNum = strings.ToUpper(m[2])
		return
	}

	out.UnitType = "UNIT"
	out.UnitNum = strings.ToUpper(addr2)
}
