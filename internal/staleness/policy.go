// Package staleness classifies cached entries as fresh, due for refresh, or stale.
// Classification combines the entry's TTL with publication hints derived from
// the record's filing cadence.
package staleness

import (
	"time"

	"github.com/aristath/fincache/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Config holds policy tuning.
type Config struct {
	// MinConfidence is the detector confidence required before publication
	// hints may override a valid TTL.
	MinConfidence float64
	// PublicationGrace is how long after an estimated publication date the
	// entry is still trusted. Filings reach data providers with a lag.
	PublicationGrace time.Duration
	// RefreshAheadFraction marks entries whose remaining TTL is below this
	// share of the full TTL as due. Zero disables refresh-ahead.
	RefreshAheadFraction float64
}

// DefaultConfig returns the default policy tuning.
func DefaultConfig() Config {
	return Config{
		MinConfidence:        0.6,
		PublicationGrace:     72 * time.Hour,
		RefreshAheadFraction: 0.1,
	}
}

// Policy classifies cache metadata at read time.
type Policy struct {
	cfg   Config
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewPolicy creates a staleness policy. A nil clock uses the real clock.
func NewPolicy(cfg Config, clock clockwork.Clock, log zerolog.Logger) *Policy {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Policy{
		cfg:   cfg,
		clock: clock,
		log:   log.With().Str("component", "staleness_policy").Logger(),
	}
}

// Now returns the policy clock's current time.
func (p *Policy) Now() time.Time {
	return p.clock.Now()
}

// Clock returns the clock the policy reads time from.
func (p *Policy) Clock() clockwork.Clock {
	return p.clock
}

// Classify classifies the metadata at the current time.
func (p *Policy) Classify(meta domain.CacheMetadata) domain.Freshness {
	return p.ClassifyAt(meta, p.clock.Now())
}

// ClassifyAt classifies the metadata at the given time.
func (p *Policy) ClassifyAt(meta domain.CacheMetadata, now time.Time) domain.Freshness {
	if !now.Before(meta.ExpiresAt) {
		return domain.FreshnessStale
	}

	if p.publishedSinceCaching(meta, now) {
		return domain.FreshnessStale
	}

	if p.cfg.RefreshAheadFraction > 0 {
		ttl := meta.ExpiresAt.Sub(meta.CachedAt)
		remaining := meta.ExpiresAt.Sub(now)
		if ttl > 0 && float64(remaining) < float64(ttl)*p.cfg.RefreshAheadFraction {
			return domain.FreshnessDue
		}
	}

	return domain.FreshnessFresh
}

// IsFresh reports whether the entry can be served without refetching.
func (p *Policy) IsFresh(meta domain.CacheMetadata) bool {
	return p.Classify(meta).Usable()
}

// WithinMaxAge reports whether the entry is young enough to be returned at
// all, including as a fallback when a fetch fails. A non-positive maxAge
// disables the ceiling.
func (p *Policy) WithinMaxAge(meta domain.CacheMetadata, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return meta.Age(p.clock.Now()) <= maxAge
}

// publishedSinceCaching reports whether a new filing is judged to have been
// published after the entry was cached. Any failure means no override.
func (p *Policy) publishedSinceCaching(meta domain.CacheMetadata, now time.Time) (stale bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn().Interface("panic", r).Msg("Publication check panicked, using TTL only")
			stale = false
		}
	}()

	if meta.NextPublicationEstimate == nil {
		return false
	}
	if meta.PublicationConfidence < p.cfg.MinConfidence {
		return false
	}

	next := *meta.NextPublicationEstimate
	if !meta.CachedAt.Before(next) {
		return false
	}
	return !now.Before(next.Add(p.cfg.PublicationGrace))
}
