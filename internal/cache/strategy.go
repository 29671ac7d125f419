package cache

import (
	"context"

	"github.com/aristath/fincache/internal/domain"
)

// Strategy is the storage contract shared by every backend. Backends persist
// and return entries as given; they never compact data or apply TTLs.
// Get returns nil, nil when there is no entry.
type Strategy interface {
	Get(ctx context.Context, userID, symbol string) (*domain.CacheEntry, error)
	Set(ctx context.Context, userID, symbol string, data *domain.FinancialRecord, meta domain.CacheMetadata) (string, error)
	Remove(ctx context.Context, userID, symbol string) (bool, error)
	Clear(ctx context.Context, userID string) (int, error)
	GetStatistics(ctx context.Context, userID string) (domain.CacheStatistics, error)
	IsFresh(ctx context.Context, userID, symbol string) (bool, error)
	GetCachedSymbols(ctx context.Context, userID string) ([]string, error)
	Name() string
}

// Resizable is implemented by backends with a byte quota.
type Resizable interface {
	SetMaxSize(maxSize int64)
}

// NoopStrategy stores nothing. It is used when both tiers are disabled, so
// every read is a miss and every write is dropped.
type NoopStrategy struct{}

func (NoopStrategy) Get(context.Context, string, string) (*domain.CacheEntry, error) {
	return nil, nil
}

func (NoopStrategy) Set(context.Context, string, string, *domain.FinancialRecord, domain.CacheMetadata) (string, error) {
	return "", nil
}

func (NoopStrategy) Remove(context.Context, string, string) (bool, error) { return false, nil }

func (NoopStrategy) Clear(context.Context, string) (int, error) { return 0, nil }

func (NoopStrategy) GetStatistics(context.Context, string) (domain.CacheStatistics, error) {
	return domain.CacheStatistics{}, nil
}

func (NoopStrategy) IsFresh(context.Context, string, string) (bool, error) { return false, nil }

func (NoopStrategy) GetCachedSymbols(context.Context, string) ([]string, error) {
	return []string{}, nil
}

func (NoopStrategy) Name() string { return "none" }

// UserLister is implemented by strategies that can enumerate the users they
// hold entries for.
type UserLister interface {
	ListUsers(ctx context.Context) ([]string, error)
}
