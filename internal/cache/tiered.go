package cache

import (
	"context"
	"errors"
	"sort"

	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/rs/zerolog"
)

// Tiered reads the local tier first and falls back to the remote tier. A
// remote hit that is newer than the local copy is written back to the local
// tier. Writes go to both tiers.
type Tiered struct {
	local  Strategy
	remote Strategy
	policy *staleness.Policy
	log    zerolog.Logger
}

// NewTiered creates a two-tier strategy.
func NewTiered(local, remote Strategy, policy *staleness.Policy, log zerolog.Logger) *Tiered {
	return &Tiered{
		local:  local,
		remote: remote,
		policy: policy,
		log:    log.With().Str("store", "tiered").Logger(),
	}
}

// Name returns the strategy name.
func (t *Tiered) Name() string {
	return t.local.Name() + "+" + t.remote.Name()
}

// Get returns the newest available entry and populates the local tier when
// the remote copy wins.
func (t *Tiered) Get(ctx context.Context, userID, symbol string) (*domain.CacheEntry, error) {
	entry, fromRemote, err := t.newest(ctx, userID, symbol)
	if err != nil || entry == nil || !fromRemote {
		return entry, err
	}

	meta := entry.Metadata
	meta.DataSource = domain.DataSourceRemote
	if _, err := t.local.Set(ctx, userID, symbol, entry.Data, meta); err != nil {
		t.log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("symbol", symbol).
			Msg("Failed to populate local tier from remote")
	}
	return entry, nil
}

// newest returns the entry to serve and whether it came from the remote tier.
// A fresh local entry is returned without touching the remote tier.
func (t *Tiered) newest(ctx context.Context, userID, symbol string) (*domain.CacheEntry, bool, error) {
	local, localErr := t.local.Get(ctx, userID, symbol)
	if localErr != nil {
		t.log.Warn().Err(localErr).Str("symbol", symbol).Msg("Local tier read failed, trying remote")
	}
	if local != nil && t.policy.IsFresh(local.Metadata) {
		return local, false, nil
	}

	remote, remoteErr := t.remote.Get(ctx, userID, symbol)
	if remoteErr != nil {
		if local != nil {
			t.log.Warn().Err(remoteErr).Str("symbol", symbol).Msg("Remote tier read failed, using local copy")
			return local, false, nil
		}
		if localErr != nil {
			return nil, false, errors.Join(localErr, remoteErr)
		}
		return nil, false, remoteErr
	}

	switch {
	case remote == nil && local == nil:
		return nil, false, localErr
	case remote == nil:
		return local, false, nil
	case local != nil && !remote.Metadata.CachedAt.After(local.Metadata.CachedAt):
		return local, false, nil
	default:
		return remote, true, nil
	}
}

// Set writes both tiers. It fails only when neither tier stored the entry.
func (t *Tiered) Set(ctx context.Context, userID, symbol string, data *domain.FinancialRecord, meta domain.CacheMetadata) (string, error) {
	localID, localErr := t.local.Set(ctx, userID, symbol, data, meta)
	remoteID, remoteErr := t.remote.Set(ctx, userID, symbol, data, meta)

	switch {
	case localErr == nil && remoteErr == nil:
		return localID, nil
	case localErr == nil:
		t.log.Warn().Err(remoteErr).Str("symbol", symbol).Msg("Remote tier write failed")
		return localID, nil
	case remoteErr == nil:
		t.log.Warn().Err(localErr).Str("symbol", symbol).Msg("Local tier write failed")
		return remoteID, nil
	default:
		return "", errors.Join(localErr, remoteErr)
	}
}

// Remove deletes the entry from both tiers.
func (t *Tiered) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	localRemoved, localErr := t.local.Remove(ctx, userID, symbol)
	remoteRemoved, remoteErr := t.remote.Remove(ctx, userID, symbol)
	return localRemoved || remoteRemoved, errors.Join(localErr, remoteErr)
}

// Clear removes every entry for the user from both tiers and returns the
// larger of the two counts.
func (t *Tiered) Clear(ctx context.Context, userID string) (int, error) {
	localCount, localErr := t.local.Clear(ctx, userID)
	remoteCount, remoteErr := t.remote.Clear(ctx, userID)
	return max(localCount, remoteCount), errors.Join(localErr, remoteErr)
}

// GetCachedSymbols returns the union of both tiers. It fails only when both
// listings fail.
func (t *Tiered) GetCachedSymbols(ctx context.Context, userID string) ([]string, error) {
	localSymbols, localErr := t.local.GetCachedSymbols(ctx, userID)
	remoteSymbols, remoteErr := t.remote.GetCachedSymbols(ctx, userID)
	if localErr != nil && remoteErr != nil {
		return nil, errors.Join(localErr, remoteErr)
	}
	if localErr != nil {
		t.log.Warn().Err(localErr).Msg("Local tier listing failed")
	}
	if remoteErr != nil {
		t.log.Warn().Err(remoteErr).Msg("Remote tier listing failed")
	}

	seen := make(map[string]bool, len(localSymbols)+len(remoteSymbols))
	symbols := make([]string, 0, len(localSymbols)+len(remoteSymbols))
	for _, list := range [][]string{localSymbols, remoteSymbols} {
		for _, symbol := range list {
			if !seen[symbol] {
				seen[symbol] = true
				symbols = append(symbols, symbol)
			}
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// IsFresh classifies the entry Get would serve, without populating the
// local tier.
func (t *Tiered) IsFresh(ctx context.Context, userID, symbol string) (bool, error) {
	entry, _, err := t.newest(ctx, userID, symbol)
	if err != nil || entry == nil {
		return false, err
	}
	return t.policy.IsFresh(entry.Metadata), nil
}

// GetStatistics summarizes the entries Get would serve for each symbol.
func (t *Tiered) GetStatistics(ctx context.Context, userID string) (domain.CacheStatistics, error) {
	symbols, err := t.GetCachedSymbols(ctx, userID)
	if err != nil {
		return domain.CacheStatistics{}, err
	}

	samples := make([]domain.EntrySample, 0, len(symbols))
	for _, symbol := range symbols {
		entry, _, err := t.newest(ctx, userID, symbol)
		if err != nil {
			t.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping unreadable entry")
			continue
		}
		if entry == nil {
			continue
		}
		samples = append(samples, domain.EntrySample{
			Symbol:   symbol,
			Metadata: entry.Metadata,
			Size:     entry.Metadata.SizeBytes,
			Fresh:    t.policy.IsFresh(entry.Metadata),
		})
	}
	return domain.Summarize(samples, t.policy.Now()), nil
}
