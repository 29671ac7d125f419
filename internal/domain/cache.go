package domain

import (
	"sort"
	"time"
)

// SchemaVersion is stamped on every stored entry.
const SchemaVersion = "2"

// Data sources recorded in CacheMetadata.DataSource
const (
	DataSourceAPI    = "api"
	DataSourceRemote = "remote"
)

// CacheMetadata describes when and how an entry was stored.
type CacheMetadata struct {
	CachedAt   time.Time `json:"cachedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	DataSource string    `json:"dataSource"`
	Version    string    `json:"version"`

	// Publication hints, derived at write time from the record's filing cadence
	NextPublicationEstimate *time.Time `json:"nextPublicationEstimate,omitempty"`
	LastPublicationDate     *time.Time `json:"lastPublicationDate,omitempty"`
	PublicationConfidence   float64    `json:"publicationConfidence,omitempty"`

	// Stored size in the backend the entry was read from. Filled on read.
	SizeBytes int64 `json:"sizeBytes,omitempty"`
}

// Age returns how long ago the entry was cached.
func (m CacheMetadata) Age(now time.Time) time.Duration {
	return now.Sub(m.CachedAt)
}

// CacheEntry is one stored record for a (user, symbol) key.
type CacheEntry struct {
	ID       string           `json:"id"`
	UserID   string           `json:"userId"`
	Symbol   string           `json:"symbol"`
	Data     *FinancialRecord `json:"data"`
	Metadata CacheMetadata    `json:"metadata"`
}

// Freshness is the read-time classification of an entry. It is never stored.
type Freshness string

const (
	FreshnessFresh Freshness = "fresh"
	// FreshnessDue is fresh but close enough to expiry to warrant a refresh.
	FreshnessDue   Freshness = "due"
	FreshnessStale Freshness = "stale"
)

// Usable reports whether the entry may be served without refetching.
func (f Freshness) Usable() bool {
	return f == FreshnessFresh || f == FreshnessDue
}

// CacheStatistics summarizes a user's cache. Computed on read.
type CacheStatistics struct {
	TotalEntries int           `json:"totalEntries"`
	FreshEntries int           `json:"freshEntries"`
	StaleEntries int           `json:"staleEntries"`
	TotalSize    int64         `json:"totalSize"`
	HitRatio     float64       `json:"hitRatio"`
	AverageAge   time.Duration `json:"averageAge"`
	NewestEntry  string        `json:"newestEntry,omitempty"`
	OldestEntry  string        `json:"oldestEntry,omitempty"`
}

// EntrySample is the per-entry input to Summarize.
type EntrySample struct {
	Symbol   string
	Metadata CacheMetadata
	Size     int64
	Fresh    bool
}

// Summarize builds statistics from a backend listing.
func Summarize(samples []EntrySample, now time.Time) CacheStatistics {
	var stats CacheStatistics
	if len(samples) == 0 {
		return stats
	}

	sorted := append([]EntrySample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Metadata.CachedAt.Before(sorted[j].Metadata.CachedAt)
	})

	var totalAge time.Duration
	for _, s := range sorted {
		stats.TotalEntries++
		if s.Fresh {
			stats.FreshEntries++
		} else {
			stats.StaleEntries++
		}
		stats.TotalSize += s.Size
		totalAge += s.Metadata.Age(now)
	}
	stats.AverageAge = totalAge / time.Duration(len(sorted))
	stats.OldestEntry = sorted[0].Symbol
	stats.NewestEntry = sorted[len(sorted)-1].Symbol
	return stats
}
