// Package usps implements the reference AddressService against the public
// USPS ShippingAPI v3 XML endpoint: address correction in batches of 5
// (ShippingAPI's hard limit), following the original USPS.java request/
// response XML shape. The HTTPClient seam mirrors the teacher's
// geocoding.NominatimProvider pattern (a small interface wrapping
// *http.Client so tests can inject a fake transport); XML is stdlib
// encoding/xml since no XML library appears anywhere in the retrieval pack.
package usps

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nysage/atlas/internal/metrics"
	"github.com/nysage/atlas/internal/models"
)

// BatchSize is the ShippingAPI v3 hard limit on addresses per request.
const BatchSize = 5

const defaultBaseURL = "https://production.shippingapis.com/ShippingAPI.dll"

// HTTPClient is the subset of *http.Client the USPS service depends on.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service is the USPS ShippingAPI v3-backed address validator.
type Service struct {
	client  HTTPClient
	apiKey  string
	baseURL string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a Service. An empty baseURL falls back to the production
// ShippingAPI endpoint. m may be nil, in which case no metrics are recorded.
func New(client HTTPClient, apiKey, baseURL string, log *slog.Logger, m *metrics.Metrics) *Service {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Service{client: client, apiKey: apiKey, baseURL: baseURL, log: log, metrics: m}
}

// Result pairs a validated Address with whether validation succeeded and
// any per-address error message, mirroring AddressResult's
// isValidated/messages fields.
type Result struct {
	Address    models.Address
	IsValidated bool
	Messages   []string
}

// Validate validates a single address, per the original's single-address
// proxy to the batch method.
func (s *Service) Validate(ctx context.Context, addr models.Address) (Result, error) {
	results, err := s.ValidateBatch(ctx, []models.Address{addr})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// ValidateBatch validates up to BatchSize addresses per request, chunking
// larger slices transparently. Results are returned in input order.
func (s *Service) ValidateBatch(ctx context.Context, addrs []models.Address) ([]Result, error) {
	results := make([]Result, 0, len(addrs))

	for start := 0; start < len(addrs); start += BatchSize {
		end := start + BatchSize
		if end > len(addrs) {
			end = len(addrs)
		}

		chunk, err := s.validateChunk(ctx, addrs[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}

	return results, nil
}

func (s *Service) validateChunk(ctx context.Context, addrs []models.Address) ([]Result, error) {
	results, err := s.doValidateChunk(ctx, addrs)
	if s.metrics != nil {
		if err != nil {
			s.metrics.USPSRequests.WithLabelValues("error").Inc()
		} else {
			s.metrics.USPSRequests.WithLabelValues("success").Inc()
		}
	}
	return results, err
}

func (s *Service) doValidateChunk(ctx context.Context, addrs []models.Address) ([]Result, error) {
	reqXML := buildRequest(s.apiKey, addrs)

	u := fmt.Sprintf("%s?API=Verify&XML=%s", s.baseURL, url.QueryEscape(reqXML))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("usps: build request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("usps: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("usps: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usps: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return parseResponse(body, len(addrs))
}

type addressRequest struct {
	XMLName  xml.Name `xml:"AddressValidateRequest"`
	USERID   string   `xml:"USERID,attr"`
	Addresses []addressXML `xml:"Address"`
}

type addressXML struct {
	ID       string `xml:"ID,attr"`
	Address1 string `xml:"Address1"`
	Address2 string `xml:"Address2"`
	City     string `xml:"City"`
	State    string `xml:"State"`
	Zip5     string `xml:"Zip5"`
	Zip4     string `xml:"Zip4"`
}

func buildRequest(apiKey string, addrs []models.Address) string {
	req := addressRequest{USERID: apiKey}
	for i, a := range addrs {
		req.Addresses = append(req.Addresses, addressXML{
			ID:       fmt.Sprintf("%d", i),
			Address1: a.Addr2, // USPS convention: Address1 = apt/suite, Address2 = street
			Address2: a.Addr1,
			City:     a.City,
			State:    a.State,
			Zip5:     a.Zip5,
			Zip4:     a.Zip4,
		})
	}

	data, err := xml.Marshal(req)
	if err != nil {
		return ""
	}
	return string(data)
}

type addressResponse struct {
	XMLName   xml.Name           `xml:"AddressValidateResponse"`
	Addresses []addressResultXML `xml:"Address"`
}

type addressResultXML struct {
	ID       string `xml:"ID,attr"`
	Address2 string `xml:"Address2"`
	City     string `xml:"City"`
	State    string `xml:"State"`
	Zip5     string `xml:"Zip5"`
	Zip4     string `xml:"Zip4"`
	Error    *struct {
		Description string `xml:"Description"`
	} `xml:"Error"`
}

func parseResponse(body []byte, expected int) ([]Result, error) {
	var resp addressResponse
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("usps: parse xml response: %w", err)
	}

	results := make([]Result, expected)
	for _, a := range resp.Addresses {
		idx := indexFromID(a.ID)
		if idx < 0 || idx >= expected {
			continue
		}

		if a.Error != nil {
			results[idx] = Result{Messages: []string{a.Error.Description}}
			continue
		}

		results[idx] = Result{
			Address: models.Address{
				Addr1: titleCaseLine(a.Address2),
				City:  titleCaseLine(a.City),
				State: a.State,
				Zip5:  a.Zip5,
				Zip4:  a.Zip4,
			},
			IsValidated: true,
		}
	}
	return results, nil
}

func indexFromID(id string) int {
	n := 0
	for _, c := range id {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	if id == "" {
		return -1
	}
	return n
}

func titleCaseLine(s string) string {
	if s == "" {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
