package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is an immutable snapshot of the cache settings. The service swaps
// whole snapshots; callers never mutate one in place.
type Config struct {
	DefaultTTL              time.Duration
	MaxAge                  time.Duration
	MaxCacheSize            int64
	UseLocalStorage         bool
	UseRemoteStorage        bool
	EnableCompression       bool
	EnableBackgroundRefresh bool
	BackgroundConcurrency   int
	DeduplicateFetches      bool
}

// DefaultConfig returns the default settings: statements are cached for a
// day and may be served as a fallback for up to a year.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:              24 * time.Hour,
		MaxAge:                  365 * 24 * time.Hour,
		MaxCacheSize:            5 * 1024 * 1024,
		UseLocalStorage:         true,
		UseRemoteStorage:        true,
		EnableCompression:       true,
		EnableBackgroundRefresh: true,
		BackgroundConcurrency:   4,
		DeduplicateFetches:      false,
	}
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default TTL must be positive, got %s", c.DefaultTTL)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max age must not be negative, got %s", c.MaxAge)
	}
	// Zero max age means stored entries never become too old to serve.
	if c.MaxAge > 0 && c.MaxAge < c.DefaultTTL {
		return fmt.Errorf("max age (%s) must not be shorter than default TTL (%s)", c.MaxAge, c.DefaultTTL)
	}
	if c.MaxCacheSize < 0 {
		return fmt.Errorf("max cache size must not be negative, got %d", c.MaxCacheSize)
	}
	if c.BackgroundConcurrency < 1 {
		return fmt.Errorf("background concurrency must be at least 1, got %d", c.BackgroundConcurrency)
	}
	return nil
}

// ConfigPatch is a partial update. Nil fields keep their current value.
type ConfigPatch struct {
	DefaultTTL              *time.Duration
	MaxAge                  *time.Duration
	MaxCacheSize            *int64
	UseLocalStorage         *bool
	UseRemoteStorage        *bool
	EnableCompression       *bool
	EnableBackgroundRefresh *bool
	BackgroundConcurrency   *int
	DeduplicateFetches      *bool
}

// Merge returns a copy of cfg with the patch applied.
func (p ConfigPatch) Merge(cfg Config) Config {
	if p.DefaultTTL != nil {
		cfg.DefaultTTL = *p.DefaultTTL
	}
	if p.MaxAge != nil {
		cfg.MaxAge = *p.MaxAge
	}
	if p.MaxCacheSize != nil {
		cfg.MaxCacheSize = *p.MaxCacheSize
	}
	if p.UseLocalStorage != nil {
		cfg.UseLocalStorage = *p.UseLocalStorage
	}
	if p.UseRemoteStorage != nil {
		cfg.UseRemoteStorage = *p.UseRemoteStorage
	}
	if p.EnableCompression != nil {
		cfg.EnableCompression = *p.EnableCompression
	}
	if p.EnableBackgroundRefresh != nil {
		cfg.EnableBackgroundRefresh = *p.EnableBackgroundRefresh
	}
	if p.BackgroundConcurrency != nil {
		cfg.BackgroundConcurrency = *p.BackgroundConcurrency
	}
	if p.DeduplicateFetches != nil {
		cfg.DeduplicateFetches = *p.DeduplicateFetches
	}
	return cfg
}

// configJSON is the wire form of Config. Durations are milliseconds.
type configJSON struct {
	DefaultTTL              int64 `json:"defaultTtl"`
	MaxAge                  int64 `json:"maxAge"`
	MaxCacheSize            int64 `json:"maxCacheSize"`
	UseLocalStorage         bool  `json:"useLocalStorage"`
	UseRemoteStorage        bool  `json:"useRemoteStorage"`
	EnableCompression       bool  `json:"enableCompression"`
	EnableBackgroundRefresh bool  `json:"enableBackgroundRefresh"`
	BackgroundConcurrency   int   `json:"backgroundConcurrency"`
	DeduplicateFetches      bool  `json:"deduplicateFetches"`
}

// MarshalJSON encodes durations as milliseconds.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		DefaultTTL:              c.DefaultTTL.Milliseconds(),
		MaxAge:                  c.MaxAge.Milliseconds(),
		MaxCacheSize:            c.MaxCacheSize,
		UseLocalStorage:         c.UseLocalStorage,
		UseRemoteStorage:        c.UseRemoteStorage,
		EnableCompression:       c.EnableCompression,
		EnableBackgroundRefresh: c.EnableBackgroundRefresh,
		BackgroundConcurrency:   c.BackgroundConcurrency,
		DeduplicateFetches:      c.DeduplicateFetches,
	})
}

type patchJSON struct {
	DefaultTTL              *int64 `json:"defaultTtl"`
	MaxAge                  *int64 `json:"maxAge"`
	MaxCacheSize            *int64 `json:"maxCacheSize"`
	UseLocalStorage         *bool  `json:"useLocalStorage"`
	UseRemoteStorage        *bool  `json:"useRemoteStorage"`
	EnableCompression       *bool  `json:"enableCompression"`
	EnableBackgroundRefresh *bool  `json:"enableBackgroundRefresh"`
	BackgroundConcurrency   *int   `json:"backgroundConcurrency"`
	DeduplicateFetches      *bool  `json:"deduplicateFetches"`
}

// UnmarshalJSON decodes a patch whose durations are milliseconds.
func (p *ConfigPatch) UnmarshalJSON(data []byte) error {
	var raw patchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = ConfigPatch{
		MaxCacheSize:            raw.MaxCacheSize,
		UseLocalStorage:         raw.UseLocalStorage,
		UseRemoteStorage:        raw.UseRemoteStorage,
		EnableCompression:       raw.EnableCompression,
		EnableBackgroundRefresh: raw.EnableBackgroundRefresh,
		BackgroundConcurrency:   raw.BackgroundConcurrency,
		DeduplicateFetches:      raw.DeduplicateFetches,
	}
	if raw.DefaultTTL != nil {
		d := time.Duration(*raw.DefaultTTL) * time.Millisecond
		p.DefaultTTL = &d
	}
	if raw.MaxAge != nil {
		d := time.Duration(*raw.MaxAge) * time.Millisecond
		p.MaxAge = &d
	}
	return nil
}
