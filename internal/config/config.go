// Package config loads the NPC runtime's world configuration from YAML,
// following the teacher's ConfigStore pattern: a typed struct with defaults
// applied before unmarshal and validated after.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// World holds every tunable the scaling substrate, fleet coordinator, and
// agent runtime read at startup.
type World struct {
	// Store configures the persistent store (component A).
	Store StoreConfig `yaml:"store"`
	// Cache configures the TTL/LRU cache (component H).
	Cache CacheConfig `yaml:"cache"`
	// Tiers configures the tiered update scheduler (component H).
	Tiers TierConfig `yaml:"tiers"`
	// Batch configures the batched write coalescer (component H).
	Batch BatchConfig `yaml:"batch"`
	// Tick configures the fleet coordinator's world tick (component F).
	Tick TickConfig `yaml:"tick"`
	// Reflection configures the autonomous loop's reflection cadence (component E).
	Reflection ReflectionConfig `yaml:"reflection"`
	// Groups configures conversation group dynamics (component G).
	Groups GroupConfig `yaml:"groups"`
	// LLM selects and configures the language-model backend.
	LLM LLMConfig `yaml:"llm"`
	// Surface configures the external HTTP/WS listener (component I).
	Surface SurfaceConfig `yaml:"surface"`
}

// SurfaceConfig configures the external HTTP/WS listener.
type SurfaceConfig struct {
	// Addr is the listen address, e.g. ":8080". Empty disables the listener.
	Addr string `yaml:"addr"`
}

// StoreConfig configures the persistent store connection pool.
type StoreConfig struct {
	// Path is the SQLite database file path ("" or ":memory:" for in-memory).
	Path string `yaml:"path"`
	// PoolSize is the number of pooled connections. Default 10.
	PoolSize int `yaml:"pool_size"`
	// PageCacheKB is the SQLite page cache target in KB. Default 64*1024.
	PageCacheKB int `yaml:"page_cache_kb"`
}

// CacheConfig configures the TTL/LRU cache.
type CacheConfig struct {
	// MaxEntries bounds cache size. Default 5000.
	MaxEntries int64 `yaml:"max_entries"`
	// TTL is the per-entry time-to-live. Default 300s.
	TTL time.Duration `yaml:"ttl"`
}

// TierConfig configures tiered-update moduli and demotion thresholds.
type TierConfig struct {
	ActiveModulo   int           `yaml:"active_modulo"`
	NearbyModulo   int           `yaml:"nearby_modulo"`
	IdleModulo     int           `yaml:"idle_modulo"`
	DormantModulo  int           `yaml:"dormant_modulo"`
	ActiveWindow   time.Duration `yaml:"active_window"`
	NearbyWindow   time.Duration `yaml:"nearby_window"`
	IdleWindow     time.Duration `yaml:"idle_window"`
}

// BatchConfig configures the pending-write queue.
type BatchConfig struct {
	FlushSize int `yaml:"flush_size"`
}

// TickConfig configures the world tick timer.
type TickConfig struct {
	Interval  time.Duration `yaml:"interval"`
	TimeScale float64       `yaml:"time_scale"`
}

// ReflectionConfig configures the autonomous loop.
type ReflectionConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// GroupConfig configures conversation group dynamics.
type GroupConfig struct {
	ProximityThreshold float64       `yaml:"proximity_threshold"`
	MaxGroupSize       int           `yaml:"max_group_size"`
	Timeout            time.Duration `yaml:"timeout"`
}

// LLMConfig selects the language-model backend and its credentials.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "genai"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// Default returns a World config with every spec-mandated default applied.
func Default() World {
	return World{
		Store: StoreConfig{Path: "npc.db", PoolSize: 10, PageCacheKB: 64 * 1024},
		Cache: CacheConfig{MaxEntries: 5000, TTL: 300 * time.Second},
		Tiers: TierConfig{
			ActiveModulo: 1, NearbyModulo: 5, IdleModulo: 20, DormantModulo: 100,
			ActiveWindow: 60 * time.Second, NearbyWindow: 300 * time.Second, IdleWindow: 3600 * time.Second,
		},
		Batch:      BatchConfig{FlushSize: 100},
		Tick:       TickConfig{Interval: 60 * time.Second, TimeScale: 1.0},
		Reflection: ReflectionConfig{Interval: 300 * time.Second},
		Groups:     GroupConfig{ProximityThreshold: 500.0, MaxGroupSize: 6, Timeout: 300 * time.Second},
		LLM:        LLMConfig{Provider: "openai", Model: "gpt-4o"},
		Surface:    SurfaceConfig{Addr: ":8080"},
	}
}

// Load reads a World config from a YAML file at path, applying defaults for
// any field the document omits.
func Load(path string) (World, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the config for internally-inconsistent values.
func (w World) Validate() error {
	if w.Store.PoolSize <= 0 {
		return fmt.Errorf("config: store.pool_size must be positive")
	}
	if w.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache.max_entries must be positive")
	}
	if w.Groups.MaxGroupSize <= 0 {
		return fmt.Errorf("config: groups.max_group_size must be positive")
	}
	if w.LLM.Provider != "openai" && w.LLM.Provider != "genai" {
		return fmt.Errorf("config: llm.provider must be 'openai' or 'genai', got %q", w.LLM.Provider)
	}
	return nil
}
