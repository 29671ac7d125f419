package local

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	backendName = "local"
	keyPrefix   = "fincache:"
)

// Store is the local cache tier. It enforces a byte quota over everything it
// writes; a write that would exceed the quota fails with
// domain.ErrQuotaExceeded. Nothing is ever evicted to make room.
type Store struct {
	storage Storage
	policy  *staleness.Policy
	maxSize atomic.Int64
	// serializes quota check and write
	writeMu sync.Mutex
	log     zerolog.Logger
}

// NewStore creates a local store over storage. A maxSize of zero or less
// disables the quota.
func NewStore(storage Storage, policy *staleness.Policy, maxSize int64, log zerolog.Logger) *Store {
	s := &Store{
		storage: storage,
		policy:  policy,
		log:     log.With().Str("store", backendName).Logger(),
	}
	s.maxSize.Store(maxSize)
	return s
}

// Name returns the backend name.
func (s *Store) Name() string { return backendName }

// SetMaxSize changes the quota. Existing entries are kept even if they
// exceed the new quota.
func (s *Store) SetMaxSize(maxSize int64) {
	s.maxSize.Store(maxSize)
}

// Get returns the entry for the key, or nil if there is none.
func (s *Store) Get(ctx context.Context, userID, symbol string) (*domain.CacheEntry, error) {
	entry, _, err := s.read(ctx, entryKey(userID, symbol))
	return entry, err
}

// Set stores data under the key, replacing any previous entry.
func (s *Store) Set(ctx context.Context, userID, symbol string, data *domain.FinancialRecord, meta domain.CacheMetadata) (string, error) {
	entry := domain.CacheEntry{
		ID:       uuid.NewString(),
		UserID:   userID,
		Symbol:   symbol,
		Data:     data,
		Metadata: meta,
	}

	entry.Metadata.SizeBytes = 0

	raw, err := encode(&entry)
	if err != nil {
		return "", &domain.StorageError{Backend: backendName, Op: "encode", Err: err}
	}

	key := entryKey(userID, symbol)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.checkQuota(ctx, key, int64(len(raw))); err != nil {
		return "", err
	}
	if err := s.storage.SetItem(ctx, key, raw); err != nil {
		return "", &domain.StorageError{Backend: backendName, Op: "set", Err: err}
	}

	return entry.ID, nil
}

func (s *Store) checkQuota(ctx context.Context, key string, size int64) error {
	maxSize := s.maxSize.Load()
	if maxSize <= 0 {
		return nil
	}

	used, err := s.storage.Size(ctx)
	if err != nil {
		return &domain.StorageError{Backend: backendName, Op: "size", Err: err}
	}
	existing, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return &domain.StorageError{Backend: backendName, Op: "get", Err: err}
	}
	if ok {
		used -= int64(len(existing))
	}

	if used+size > maxSize {
		s.log.Warn().
			Str("key", key).
			Int64("used", used).
			Int64("entry_size", size).
			Int64("max_size", maxSize).
			Msg("Local cache quota exceeded")
		return &domain.StorageError{Backend: backendName, Op: "set", Err: domain.ErrQuotaExceeded}
	}
	return nil
}

// Remove deletes the entry and reports whether one existed.
func (s *Store) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	key := entryKey(userID, symbol)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return false, &domain.StorageError{Backend: backendName, Op: "get", Err: err}
	}
	if !ok {
		return false, nil
	}
	if err := s.storage.RemoveItem(ctx, key); err != nil {
		return false, &domain.StorageError{Backend: backendName, Op: "remove", Err: err}
	}
	return true, nil
}

// Clear removes every entry for the user and returns how many were removed.
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	keys, err := s.storage.Keys(ctx, userPrefix(userID))
	if err != nil {
		return 0, &domain.StorageError{Backend: backendName, Op: "list", Err: err}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	removed := 0
	for _, key := range keys {
		if err := s.storage.RemoveItem(ctx, key); err != nil {
			return removed, &domain.StorageError{Backend: backendName, Op: "remove", Err: err}
		}
		removed++
	}
	return removed, nil
}

// GetStatistics summarizes the user's entries. HitRatio is left to the caller.
func (s *Store) GetStatistics(ctx context.Context, userID string) (domain.CacheStatistics, error) {
	keys, err := s.storage.Keys(ctx, userPrefix(userID))
	if err != nil {
		return domain.CacheStatistics{}, &domain.StorageError{Backend: backendName, Op: "list", Err: err}
	}

	samples := make([]domain.EntrySample, 0, len(keys))
	for _, key := range keys {
		entry, size, err := s.read(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping unreadable entry")
			continue
		}
		if entry == nil {
			continue
		}
		samples = append(samples, domain.EntrySample{
			Symbol:   entry.Symbol,
			Metadata: entry.Metadata,
			Size:     size,
			Fresh:    s.policy.IsFresh(entry.Metadata),
		})
	}

	return domain.Summarize(samples, s.policy.Now()), nil
}

// IsFresh reports whether a usable entry exists for the key.
func (s *Store) IsFresh(ctx context.Context, userID, symbol string) (bool, error) {
	entry, err := s.Get(ctx, userID, symbol)
	if err != nil || entry == nil {
		return false, err
	}
	return s.policy.IsFresh(entry.Metadata), nil
}

// GetCachedSymbols lists the user's cached symbols in ascending order.
func (s *Store) GetCachedSymbols(ctx context.Context, userID string) ([]string, error) {
	prefix := userPrefix(userID)
	keys, err := s.storage.Keys(ctx, prefix)
	if err != nil {
		return nil, &domain.StorageError{Backend: backendName, Op: "list", Err: err}
	}

	symbols := make([]string, 0, len(keys))
	for _, key := range keys {
		symbol, err := url.QueryUnescape(strings.TrimPrefix(key, prefix))
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping malformed key")
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ListUsers returns every user with at least one stored entry, sorted.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	keys, err := s.storage.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, &domain.StorageError{Backend: backendName, Op: "list", Err: err}
	}

	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, key := range keys {
		escaped, _, ok := strings.Cut(strings.TrimPrefix(key, keyPrefix), ":")
		if !ok {
			continue
		}
		user, err := url.QueryUnescape(escaped)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping malformed key")
			continue
		}
		if _, dup := seen[user]; dup {
			continue
		}
		seen[user] = struct{}{}
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}

func (s *Store) read(ctx context.Context, key string) (*domain.CacheEntry, int64, error) {
	raw, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return nil, 0, &domain.StorageError{Backend: backendName, Op: "get", Err: err}
	}
	if !ok {
		return nil, 0, nil
	}

	entry, err := decode(raw)
	if err != nil {
		return nil, 0, &domain.StorageError{Backend: backendName, Op: "decode", Err: err}
	}
	entry.Metadata.SizeBytes = int64(len(raw))
	return entry, int64(len(raw)), nil
}

func userPrefix(userID string) string {
	return keyPrefix + url.QueryEscape(userID) + ":"
}

func entryKey(userID, symbol string) string {
	return userPrefix(userID) + url.QueryEscape(symbol)
}

func encode(entry *domain.CacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(entry); err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(raw []byte) (*domain.CacheEntry, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")

	var entry domain.CacheEntry
	if err := dec.Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &entry, nil
}
