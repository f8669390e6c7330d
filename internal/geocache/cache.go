// Package geocache implements the Postgres-backed geocode cache: a
// content-addressed lookup keyed by the normalized street address, with a
// buffered, deduplicated, single-flighted write path. It generalizes the
// teacher's task-queue repository (query active rows, write results back)
// into a cache keyed by address shape rather than by a task id.
package geocache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nysage/atlas/internal/addrparse"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/metrics"
	"github.com/nysage/atlas/internal/models"
)

// DefaultBufferSize is the queue depth above which Put triggers a flush, per
// spec's BUFFER_SIZE default.
const DefaultBufferSize = 100

const uniqueViolationCode = "23505"

// Cache is the geocode cache described by the cache contract: lookup(street
// address) and put(geocoded address), backed by Postgres.
type Cache struct {
	db         dbpool.Pool
	log        *slog.Logger
	bufferSize int
	metrics    *metrics.Metrics

	mu       sync.Mutex
	queue    []models.GeocodedAddress
	flushing bool
}

// New constructs a Cache with the given buffer size. A bufferSize <= 0 falls
// back to DefaultBufferSize. m may be nil, in which case no metrics are
// recorded.
func New(db dbpool.Pool, log *slog.Logger, bufferSize int, m *metrics.Metrics) *Cache {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Cache{db: db, log: log, bufferSize: bufferSize, metrics: m}
}

// Lookup implements the §4.2 lookup rules. It returns (nil, nil) on a miss —
// a miss is not an error.
func (c *Cache) Lookup(ctx context.Context, addr models.StreetAddress) (*models.GeocodedAddress, error) {
	if !addr.Retrievable() {
		return nil, nil
	}

	result, err := c.lookup(ctx, addr)
	if c.metrics != nil && err == nil {
		if result != nil {
			c.metrics.CacheHits.Inc()
		} else {
			c.metrics.CacheMisses.Inc()
		}
	}
	return result, err
}

func (c *Cache) lookup(ctx context.Context, addr models.StreetAddress) (*models.GeocodedAddress, error) {

	var row pgx.Row
	switch {
	case addr.POBox || !addr.HasStreet():
		row = c.db.QueryRow(ctx, lookupByLocationQuery, addr.Zip5, addr.Location, addr.State)
	default:
		row = c.db.QueryRow(
			ctx,
			lookupByStreetQuery,
			addr.BldgNum, addr.PreDir, addr.StreetName, addr.PostDir, addr.StreetType,
			addr.Zip5, addr.Location, addr.State,
		)
	}

	var (
		location, state, zip5, streetName, streetType, preDir, postDir, method string
		bldgNum                                                                int
		lat, lon                                                               float64
		quality                                                                int
	)

	err := row.Scan(&bldgNum, &preDir, &streetName, &streetType, &postDir, &location, &state, &zip5,
		&lat, &lon, &method, &quality)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("geocache: lookup failed: %w", err)
	}

	q := models.Quality(quality)
	if bldgNum > 0 && !q.AtLeast(models.QualityHouse) {
		return nil, nil
	}

	hit := models.StreetAddress{
		BldgNum:    bldgNum,
		PreDir:     preDir,
		StreetName: titleCase(streetName),
		StreetType: streetType,
		PostDir:    postDir,
		Location:   titleCase(location),
		State:      state,
		Zip5:       zip5,
	}

	result := &models.GeocodedAddress{
		Street: hit,
		Address: hit.ToAddress(),
		Geocode: models.Geocode{Lat: lat, Lon: lon, Method: method, Quality: q, Cached: true},
	}

	return result, nil
}

// Put implements the write path: filter, enqueue, and trigger a flush once
// the buffer exceeds the configured size. It never blocks on the database —
// the caller gets control back as soon as the item is queued (or rejected).
func (c *Cache) Put(ctx context.Context, entry models.GeocodedAddress) {
	if !entry.IsValid() || entry.Geocode.Cached {
		return
	}

	c.mu.Lock()
	c.queue = append(c.queue, entry)
	shouldFlush := len(c.queue) > c.bufferSize && !c.flushing
	c.mu.Unlock()

	if shouldFlush {
		go c.Flush(context.WithoutCancel(ctx))
	}
}

// Flush drains the queue and inserts every cacheable entry. At most one
// flush runs at a time; concurrent callers return immediately.
func (c *Cache) Flush(ctx context.Context) {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.flushing = false
		c.mu.Unlock()
	}()

	for _, entry := range batch {
		street, err := addrparse.Parse(entry.Address)
		if err != nil {
			c.log.WarnContext(ctx, "geocache: flush re-parse failed", "error", err)
			continue
		}
		if !street.Cacheable() {
			continue
		}

		if err := c.insert(ctx, street, entry.Geocode); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			c.log.ErrorContext(ctx, "geocache: flush insert failed", "error", err)
			continue
		}
		if c.metrics != nil {
			c.metrics.CacheFlushed.Inc()
		}
	}
}

func (c *Cache) insert(ctx context.Context, addr models.StreetAddress, geo models.Geocode) error {
	_, err := c.db.Exec(ctx, insertQuery,
		addr.BldgNum, addr.PreDir, addr.StreetName, addr.PostDir, addr.StreetType,
		addr.Location, addr.State, addr.Zip5,
		geo.Lat, geo.Lon, geo.Method, int(geo.Quality),
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// lookupByStreetQuery mirrors GeoCacheDao.SQLFRAG_WHERE_BUILDING_MATCH: a
// supplied zip5 alone decides the match; city/state only gate the match when
// no zip5 was given.
const lookupByStreetQuery = `
	SELECT bldg_num, pre_dir, street_name, street_type, post_dir, city, state, zip5,
	       lat, lon, method, quality
	FROM geocode_cache
	WHERE
		bldg_num = $1
		AND pre_dir = $2
		AND street_name = $3
		AND post_dir = $4
		AND street_type = $5
		AND (
			($6 != '' AND zip5 = $6)
			OR ($6 = '' AND city = $7 AND city != '' AND state = $8)
		)
	LIMIT 1;
`

// lookupByLocationQuery mirrors SQLFRAG_WHERE_CITY_ZIP_MATCH: same
// zip5-takes-precedence-over-city/state branching, for PO-box/empty-street
// addresses.
const lookupByLocationQuery = `
	SELECT bldg_num, pre_dir, street_name, street_type, post_dir, city, state, zip5,
	       lat, lon, method, quality
	FROM geocode_cache
	WHERE
		street_name = ''
		AND (
			($1 != '' AND zip5 = $1)
			OR ($1 = '' AND zip5 = '' AND city = $2 AND city != '' AND state = $3)
		)
	LIMIT 1;
`

const insertQuery = `
	INSERT INTO geocode_cache
		(bldg_num, pre_dir, street_name, post_dir, street_type, city, state, zip5, lat, lon, method, quality)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
