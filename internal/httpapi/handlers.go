package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/pipeline"
	"github.com/nysage/atlas/internal/resultstatus"
)

// districtAssignResponse mirrors models.DistrictResult but flattens the
// Entries map into a plain object keyed by district type string, since
// that is the shape every JSON client of this API expects.
type districtAssignResponse struct {
	Address    models.Address                  `json:"address"`
	Geocode    models.Geocode                   `json:"geocode"`
	MatchLevel models.MatchLevel                `json:"matchLevel"`
	Districts  map[string]*models.DistrictEntry `json:"districts"`
	StatusCode int                              `json:"statusCode"`
	Message    string                           `json:"message,omitempty"`
}

func toResponse(r *models.DistrictResult) districtAssignResponse {
	districts := make(map[string]*models.DistrictEntry, len(r.DistrictInfo.Entries))
	for t, e := range r.DistrictInfo.Entries {
		districts[string(t)] = e
	}
	return districtAssignResponse{
		Address:    r.GeocodedAddress.Address,
		Geocode:    r.GeocodedAddress.Geocode,
		MatchLevel: r.MatchLevel,
		Districts:  districts,
		StatusCode: r.StatusCode,
		Message:    r.Message,
	}
}

// handleDistrictAssign runs the full resolution pipeline for a single
// address or point, or a batch of either when the body is a JSON array.
func (s *Server) handleDistrictAssign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestTimeout(r.Context())
	defer cancel()

	if r.Method == http.MethodPost && isBatchBody(r) {
		s.handleDistrictAssignBatch(w, r)
		return
	}

	req, ok := s.buildDistrictRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, resultstatus.MissingAddress, "missing address or point")
		return
	}

	result, err := s.pipeline.Resolve(ctx, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, resultstatus.InternalError, err.Error())
		return
	}
	writeJSON(w, toResponse(result))
}

// handleDistrictBluebird is the multi-match/"bluebird" overlap-only view:
// the same pipeline, but always shown maps so a client can render the
// candidate boundary set directly.
func (s *Server) handleDistrictBluebird(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestTimeout(r.Context())
	defer cancel()

	req, ok := s.buildDistrictRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, resultstatus.MissingAddress, "missing address or point")
		return
	}
	req.ShowMaps = true

	result, err := s.pipeline.Resolve(ctx, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, resultstatus.InternalError, err.Error())
		return
	}
	writeJSON(w, toResponse(result))
}

func (s *Server) handleDistrictAssignBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestTimeout(r.Context())
	defer cancel()

	var addrs []models.Address
	if err := json.NewDecoder(r.Body).Decode(&addrs); err != nil {
		writeError(w, http.StatusBadRequest, resultstatus.APIRequestInvalid, "invalid batch body")
		return
	}

	flags := districtFlagsFrom(r)
	results := make([]districtAssignResponse, 0, len(addrs))
	for _, addr := range addrs {
		req := flags
		req.Address = &addr
		result, err := s.pipeline.Resolve(ctx, req)
		if err != nil {
			results = append(results, districtAssignResponse{
				Address:    addr,
				StatusCode: int(resultstatus.InternalError),
				Message:    err.Error(),
			})
			continue
		}
		results = append(results, toResponse(result))
	}
	writeJSON(w, results)
}

func (s *Server) buildDistrictRequest(r *http.Request) (pipeline.Request, bool) {
	req := districtFlagsFrom(r)

	if lat, lon, ok := pointQuery(r); ok {
		req.Point = &models.LatLon{Lat: lat, Lon: lon}
		return req, true
	}

	addr, ok := requestAddress(r)
	if !ok {
		return req, false
	}
	req.Address = &addr
	return req, true
}

func districtFlagsFrom(r *http.Request) pipeline.Request {
	return pipeline.Request{
		USPSValidate:     boolQuery(r, "uspsValidate"),
		SkipGeocode:      boolQuery(r, "skipGeocode"),
		ShowMaps:         boolQuery(r, "showMaps"),
		ShowMembers:      boolQuery(r, "showMembers"),
		DistrictStrategy: pipeline.DistrictStrategy(r.URL.Query().Get("districtStrategy")),
		Provider:         r.URL.Query().Get("provider"),
		GeoProvider:      r.URL.Query().Get("geoProvider"),
	}
}

func pointQuery(r *http.Request) (lat, lon float64, ok bool) {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" || lonStr == "" {
		return 0, 0, false
	}
	var err error
	lat, err = parseFloat(latStr)
	if err != nil {
		return 0, 0, false
	}
	lon, err = parseFloat(lonStr)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// isBatchBody implements spec.md §6's batch detection rule directly: the
// batch form has no marker of its own, it is simply a bare JSON array body
// in place of the single-object body. It peeks past whitespace for the
// leading '[' and rewinds r.Body so the real decoder sees the body
// untouched.
func isBatchBody(r *http.Request) bool {
	if r.Body == nil {
		return false
	}
	buf := bufio.NewReader(r.Body)
	isArray := false
	for {
		b, err := buf.ReadByte()
		if err != nil {
			break
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		isArray = b == '['
		if err := buf.UnreadByte(); err != nil {
			break
		}
		break
	}

	rest, _ := io.ReadAll(buf)
	r.Body = io.NopCloser(bytes.NewReader(rest))
	return isArray
}

// handleAddressValidate runs the USPS reference AddressService against a
// single address (or a JSON array for the batch variant).
func (s *Server) handleAddressValidate(w http.ResponseWriter, r *http.Request) {
	if s.usps == nil {
		writeError(w, http.StatusServiceUnavailable, resultstatus.ServiceNotSupported, "usps validation not configured")
		return
	}

	ctx, cancel := requestTimeout(r.Context())
	defer cancel()

	if r.Method == http.MethodPost && isBatchBody(r) {
		var addrs []models.Address
		if err := json.NewDecoder(r.Body).Decode(&addrs); err != nil {
			writeError(w, http.StatusBadRequest, resultstatus.APIRequestInvalid, "invalid batch body")
			return
		}
		results, err := s.usps.ValidateBatch(ctx, addrs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, resultstatus.NoAddressValidateResult, err.Error())
			return
		}
		writeJSON(w, results)
		return
	}

	addr, ok := requestAddress(r)
	if !ok {
		writeError(w, http.StatusBadRequest, resultstatus.MissingAddress, "missing address")
		return
	}
	result, err := s.usps.Validate(ctx, addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, resultstatus.NoAddressValidateResult, err.Error())
		return
	}
	writeJSON(w, result)
}

// handleAddressCityState resolves an address down to city/state only, the
// lightest-weight validation tier.
func (s *Server) handleAddressCityState(w http.ResponseWriter, r *http.Request) {
	if s.usps == nil {
		writeError(w, http.StatusServiceUnavailable, resultstatus.ServiceNotSupported, "usps validation not configured")
		return
	}
	ctx, cancel := requestTimeout(r.Context())
	defer cancel()

	addr, ok := requestAddress(r)
	if !ok || addr.Zip5 == "" {
		writeError(w, http.StatusBadRequest, resultstatus.MissingZipcode, "missing zip5")
		return
	}
	result, err := s.usps.Validate(ctx, models.Address{Zip5: addr.Zip5})
	if err != nil {
		writeError(w, http.StatusInternalServerError, resultstatus.NoAddressValidateResult, err.Error())
		return
	}
	writeJSON(w, map[string]string{"city": result.Address.City, "state": result.Address.State})
}

// handleAddressZipcode resolves an address down to its zip5/zip4, the
// inverse lookup direction from citystate.
func (s *Server) handleAddressZipcode(w http.ResponseWriter, r *http.Request) {
	if s.usps == nil {
		writeError(w, http.StatusServiceUnavailable, resultstatus.ServiceNotSupported, "usps validation not configured")
		return
	}
	ctx, cancel := requestTimeout(r.Context())
	defer cancel()

	addr, ok := requestAddress(r)
	if !ok {
		writeError(w, http.StatusBadRequest, resultstatus.MissingAddress, "missing address")
		return
	}
	result, err := s.usps.Validate(ctx, addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, resultstatus.NoAddressValidateResult, err.Error())
		return
	}
	writeJSON(w, map[string]string{"zip5": result.Address.Zip5, "zip4": result.Address.Zip4})
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
