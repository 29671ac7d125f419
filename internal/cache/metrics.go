package cache

import "github.com/aristath/fincache/internal/domain"

// Metrics receives cache events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Hit()
	Miss()
	StaleServed()
	FetchError()
	StoreError(op string)
	Compression(tier domain.CompressionTier)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                               {}
func (NoopMetrics) Miss()                              {}
func (NoopMetrics) StaleServed()                       {}
func (NoopMetrics) FetchError()                        {}
func (NoopMetrics) StoreError(string)                  {}
func (NoopMetrics) Compression(domain.CompressionTier) {}
