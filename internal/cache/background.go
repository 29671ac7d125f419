package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchReport lists what a background fan-out did with each symbol.
type BatchReport struct {
	Requested []string `json:"requested"`
	Skipped   []string `json:"skipped"`
	Refreshed []string `json:"refreshed"`
	Failed    []string `json:"failed"`
}

func newBatchReport(requested []string) BatchReport {
	return BatchReport{
		Requested: requested,
		Skipped:   []string{},
		Refreshed: []string{},
		Failed:    []string{},
	}
}

// PreloadData fetches and stores every symbol that has no usable entry.
// One failing symbol never affects the others.
func (s *Service) PreloadData(ctx context.Context, userID string, symbols []string) BatchReport {
	userID = strings.TrimSpace(userID)
	requested := distinctSymbols(symbols)
	if userID == "" {
		s.log.Warn().Int("symbols", len(requested)).Msg("Preload requested without user id")
		return newBatchReport(requested)
	}
	s.trackUser(userID)

	cfg := s.Configuration()
	report := s.fanOut(ctx, cfg, userID, requested)
	s.log.Info().
		Str("user_id", userID).
		Int("requested", len(report.Requested)).
		Int("skipped", len(report.Skipped)).
		Int("refreshed", len(report.Refreshed)).
		Int("failed", len(report.Failed)).
		Msg("Preload finished")
	return report
}

// RefreshCacheInBackground re-fetches the user's cached symbols that are no
// longer fresh. It does nothing when background refresh is disabled.
func (s *Service) RefreshCacheInBackground(ctx context.Context, userID string) BatchReport {
	userID = strings.TrimSpace(userID)
	cfg := s.Configuration()
	if !cfg.EnableBackgroundRefresh || userID == "" {
		return newBatchReport([]string{})
	}

	symbols, err := s.strategy(cfg).GetCachedSymbols(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to list cached symbols for refresh")
		return newBatchReport([]string{})
	}

	report := s.fanOut(ctx, cfg, userID, distinctSymbols(symbols))
	s.log.Info().
		Str("user_id", userID).
		Int("cached", len(report.Requested)).
		Int("refreshed", len(report.Refreshed)).
		Int("failed", len(report.Failed)).
		Msg("Background refresh finished")
	return report
}

// fanOut runs an independent classify-fetch-store cycle per symbol, at most
// BackgroundConcurrency at a time.
func (s *Service) fanOut(ctx context.Context, cfg Config, userID string, symbols []string) BatchReport {
	report := newBatchReport(symbols)
	store := s.strategy(cfg)

	var mu sync.Mutex
	record := func(list *[]string, symbol string) {
		mu.Lock()
		*list = append(*list, symbol)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(cfg.BackgroundConcurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Str("user_id", userID).
						Str("symbol", symbol).
						Str("panic", fmt.Sprint(r)).
						Msg("Background refresh panicked")
					record(&report.Failed, symbol)
				}
			}()

			if ctx.Err() != nil {
				record(&report.Failed, symbol)
				return nil
			}

			fresh, err := store.IsFresh(ctx, userID, symbol)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Freshness check failed, refreshing")
			}
			if fresh {
				record(&report.Skipped, symbol)
				return nil
			}

			if _, err := s.fetchAndStore(ctx, cfg, store, userID, symbol, GetOptions{Background: true}); err != nil {
				s.log.Warn().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Background fetch failed")
				record(&report.Failed, symbol)
				return nil
			}
			record(&report.Refreshed, symbol)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Skipped)
	sort.Strings(report.Refreshed)
	sort.Strings(report.Failed)
	return report
}

// distinctSymbols upper-cases, trims and de-duplicates symbols, keeping
// first-seen order and dropping empties.
func distinctSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}
