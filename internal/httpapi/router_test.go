package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nysage/atlas/internal/districtassign"
	"github.com/nysage/atlas/internal/geocache"
	"github.com/nysage/atlas/internal/geocodepipeline"
	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/httpapi"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/multimatch"
	"github.com/nysage/atlas/internal/pipeline"
	"github.com/nysage/atlas/internal/registry"
	"github.com/nysage/atlas/internal/shapefile"
	"github.com/nysage/atlas/internal/streetfile"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Geocode(context.Context, string) (*models.Geocode, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*httptest.Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	log := slog.Default()
	cache := geocache.New(mock, log, geocache.DefaultBufferSize, nil)
	reg := registry.New[geocoding.Provider]()
	reg.RegisterDefault("stub", func() geocoding.Provider { return stubProvider{} })
	gp := geocodepipeline.New(reg, cache, log, 1, nil)

	shapes := shapefile.New(mock, log)
	streets := streetfile.New(mock, log)
	assigner := districtassign.New(shapes, streets, log, 0)
	resolver := multimatch.New(streets, shapes)

	reverseReg := registry.New[geocoding.Provider]()

	p := pipeline.New(gp, assigner, resolver, shapes, nil, reverseReg, nil, log, nil)

	server := httpapi.New(p, nil, mock, prometheus.NewRegistry(), log)
	return httptest.NewServer(server.Router()), mock
}

func TestHealthz_OK(t *testing.T) {
	t.Parallel()
	ts, mock := newTestServer(t)
	defer ts.Close()
	mock.ExpectPing()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDistrictAssign_MissingAddressIsBadRequest(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/district/assign")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "statusCode")
}

func TestDistrictAssign_SkipGeocodeEmptyAddressReturnsNoMatch(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/district/assign?skipGeocode=1&city=Albany&state=NY")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOMATCH", body["matchLevel"])
}

// TestDistrictAssign_BareArrayBodyIsBatch covers spec.md §6's batch form: a
// bare JSON array body, no "?batch=1" marker and no "{"addresses":[...]}"
// wrapper, detected purely by sniffing the body's leading token.
func TestDistrictAssign_BareArrayBodyIsBatch(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	defer ts.Close()

	body := []byte(`[{"city":"Albany","state":"NY"}]`)
	resp, err := http.Post(ts.URL+"/api/district/assign?skipGeocode=1", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var results []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "NOMATCH", results[0]["matchLevel"])
}

func TestAddressValidate_NoUSPSConfiguredIsServiceUnavailable(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/address/validate?addr1=100+State+St")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
