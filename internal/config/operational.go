package config

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// OperationalConfig holds the settings that may change at runtime without a
// restart: provider fallback ordering, the cacheable-provider set, thread
// counts, buffer sizes, the district-consolidation proximity threshold, and
// the default district strategy. It is read via viper, which watches its
// backing file and swaps an atomic.Pointer snapshot on change; Snapshot()
// returns whichever value is current. The only reader, cmd/main.go, calls
// Snapshot() once at startup and builds its components from that value, so
// a later reload updates the store but not those components.
type OperationalConfig struct {
	DefaultProvider    string
	FallbackChain      []string
	CacheableProviders []string
	CacheBufferSize    int
	BatchConcurrency   int
	ProximityThreshold float64
	DefaultStrategy    string
}

// OperationalStore is the live-reloadable holder for OperationalConfig.
type OperationalStore struct {
	snapshot atomic.Pointer[OperationalConfig]
	log      *slog.Logger
}

// NewOperationalStore loads path via viper and starts watching it for
// changes. If path is empty or unreadable, the store falls back to
// defaultOperationalConfig() rather than failing (an unreadable file is
// logged as a warning; an empty path is not logged) —
// operational config is a tuning layer, not a hard dependency.
func NewOperationalStore(path string, log *slog.Logger) *OperationalStore {
	store := &OperationalStore{log: log}
	store.snapshot.Store(defaultOperationalConfig())

	if path == "" {
		return store
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		log.Warn("config: operational config unreadable, using defaults", "path", path, "error", err)
		return store
	}

	store.apply(v)

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		store.apply(v)
		log.Info("config: operational config reloaded", "path", path)
	})

	return store
}

func (s *OperationalStore) apply(v *viper.Viper) {
	cfg := &OperationalConfig{
		DefaultProvider:    v.GetString("provider.default"),
		FallbackChain:      splitCSV(v.GetString("provider.fallback_chain")),
		CacheableProviders: splitCSV(v.GetString("provider.cacheable")),
		CacheBufferSize:    v.GetInt("cache.buffer_size"),
		BatchConcurrency:   v.GetInt("batch.concurrency"),
		ProximityThreshold: v.GetFloat64("district.proximity_threshold_meters"),
		DefaultStrategy:    v.GetString("district.default_strategy"),
	}
	if cfg.CacheBufferSize <= 0 {
		cfg.CacheBufferSize = defaultOperationalConfig().CacheBufferSize
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultOperationalConfig().BatchConcurrency
	}
	if cfg.ProximityThreshold <= 0 {
		cfg.ProximityThreshold = defaultOperationalConfig().ProximityThreshold
	}
	s.snapshot.Store(cfg)
}

// Snapshot returns the current operational config. Safe for concurrent use;
// never returns nil.
func (s *OperationalStore) Snapshot() *OperationalConfig {
	return s.snapshot.Load()
}

func defaultOperationalConfig() *OperationalConfig {
	return &OperationalConfig{
		DefaultProvider:    "google",
		CacheBufferSize:    100,
		BatchConcurrency:   3,
		ProximityThreshold: 50.0,
		DefaultStrategy:    "",
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
