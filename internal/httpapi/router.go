// Package httpapi is the thin HTTP surface over the resolution pipeline
// named by §6: chi-routed district/address endpoints plus the teacher's own
// /healthz and /metrics monitoring routes merged into one mux, following
// EV-Backend's and sells-group-research-cli's chi.NewRouter()+route-group
// layout and go-chi/cors middleware usage.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/models"
	"github.com/nysage/atlas/internal/pipeline"
	"github.com/nysage/atlas/internal/resultstatus"
	"github.com/nysage/atlas/internal/usps"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the resolution pipeline and USPS validator behind a chi
// router.
type Server struct {
	pipeline *pipeline.Pipeline
	usps     *usps.Service
	db       dbpool.Pool
	log      *slog.Logger
	registry *prometheus.Registry
}

// New constructs a Server. usps may be nil — the validate/citystate/zipcode
// routes then always report "USPS not configured".
func New(p *pipeline.Pipeline, uspsSvc *usps.Service, db dbpool.Pool, reg *prometheus.Registry, log *slog.Logger) *Server {
	return &Server{pipeline: p, usps: uspsSvc, db: db, registry: reg, log: log}
}

// Router builds the full mux: the district/address API plus /healthz and
// /metrics, matching the teacher's pattern of serving monitoring endpoints
// alongside application routes rather than on a separate port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestIDHeader)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/district", func(r chi.Router) {
		r.Get("/assign", s.handleDistrictAssign)
		r.Post("/assign", s.handleDistrictAssign)
		r.Get("/bluebird", s.handleDistrictBluebird)
		r.Post("/bluebird", s.handleDistrictBluebird)
	})

	r.Route("/api/address", func(r chi.Router) {
		r.Get("/validate", s.handleAddressValidate)
		r.Post("/validate", s.handleAddressValidate)
		r.Get("/citystate", s.handleAddressCityState)
		r.Post("/citystate", s.handleAddressCityState)
		r.Get("/zipcode", s.handleAddressZipcode)
		r.Post("/zipcode", s.handleAddressZipcode)
	})

	return r
}

// requestIDHeader mirrors EV-Backend/sells-group-research-cli's pattern of
// stamping a UUID request id onto every response for client-side
// correlation, independent of chi's own internal request-id middleware.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, body := http.StatusOK, "OK"
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, "DB ping failed"
		}
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.ErrorContext(ctx, "httpapi: failed to write healthz reply", "error", err)
	}
}

// errorEnvelope is §7's uniform error shape.
type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func writeError(w http.ResponseWriter, httpStatus int, code resultstatus.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(errorEnvelope{StatusCode: int(code), Message: message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func requestAddress(r *http.Request) (models.Address, bool) {
	q := r.URL.Query()
	if r.Method == http.MethodPost {
		var addr models.Address
		if err := json.NewDecoder(r.Body).Decode(&addr); err == nil {
			return addr, true
		}
	}
	addr := models.Address{
		Addr1: q.Get("addr1"),
		Addr2: q.Get("addr2"),
		City:  q.Get("city"),
		State: q.Get("state"),
		Zip5:  q.Get("zip5"),
		Zip4:  q.Get("zip4"),
	}
	return addr, !addr.IsEmpty()
}

func boolQuery(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "1" || v == "true" || v == "yes"
}

func requestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 25*time.Second)
}
