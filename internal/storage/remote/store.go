package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

const (
	backendName  = "remote"
	documentExt  = ".json.zst"
	cacheSegment = "financial-cache"
)

// Store is the remote cache tier. Each entry is one zstd-compressed JSON
// document under users/<user>/financial-cache/<symbol>.json.zst.
type Store struct {
	client  DocumentClient
	policy  *staleness.Policy
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     zerolog.Logger
}

// NewStore creates a remote store over client.
func NewStore(client DocumentClient, policy *staleness.Policy, log zerolog.Logger) (*Store, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Store{
		client:  client,
		policy:  policy,
		encoder: encoder,
		decoder: decoder,
		log:     log.With().Str("store", backendName).Logger(),
	}, nil
}

// Name returns the backend name.
func (s *Store) Name() string { return backendName }

// Close releases the zstd decoder.
func (s *Store) Close() {
	s.decoder.Close()
}

// Get returns the entry for the key, or nil if there is none.
func (s *Store) Get(ctx context.Context, userID, symbol string) (*domain.CacheEntry, error) {
	entry, _, err := s.read(ctx, documentKey(userID, symbol))
	return entry, err
}

// Set writes the entry document, replacing any previous one.
func (s *Store) Set(ctx context.Context, userID, symbol string, data *domain.FinancialRecord, meta domain.CacheMetadata) (string, error) {
	entry := domain.CacheEntry{
		ID:       uuid.NewString(),
		UserID:   userID,
		Symbol:   symbol,
		Data:     data,
		Metadata: meta,
	}

	entry.Metadata.SizeBytes = 0

	raw, err := json.Marshal(&entry)
	if err != nil {
		return "", &domain.StorageError{Backend: backendName, Op: "encode", Err: err}
	}
	body := s.encoder.EncodeAll(raw, nil)

	if err := s.client.PutDocument(ctx, documentKey(userID, symbol), body); err != nil {
		return "", &domain.StorageError{Backend: backendName, Op: "set", Err: err}
	}

	s.log.Debug().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int("json_bytes", len(raw)).
		Int("stored_bytes", len(body)).
		Msg("Stored entry document")

	return entry.ID, nil
}

// Remove deletes the entry document and reports whether one existed.
func (s *Store) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	key := documentKey(userID, symbol)

	exists, err := s.client.DocumentExists(ctx, key)
	if err != nil {
		return false, &domain.StorageError{Backend: backendName, Op: "stat", Err: err}
	}
	if !exists {
		return false, nil
	}
	if err := s.client.DeleteDocument(ctx, key); err != nil {
		return false, &domain.StorageError{Backend: backendName, Op: "remove", Err: err}
	}
	return true, nil
}

// Clear deletes every entry document for the user.
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	keys, err := s.listKeys(ctx, userID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if err := s.client.DeleteDocument(ctx, key); err != nil {
			return removed, &domain.StorageError{Backend: backendName, Op: "remove", Err: err}
		}
		removed++
	}
	return removed, nil
}

// GetStatistics summarizes the user's entries. Sizes are stored (compressed)
// bytes.
func (s *Store) GetStatistics(ctx context.Context, userID string) (domain.CacheStatistics, error) {
	keys, err := s.listKeys(ctx, userID)
	if err != nil {
		return domain.CacheStatistics{}, err
	}

	samples := make([]domain.EntrySample, 0, len(keys))
	for _, key := range keys {
		entry, size, err := s.read(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping unreadable document")
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
	keys, err := s.listKeys(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefix := userPrefix(userID)
	symbols := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), documentExt)
		symbol, err := url.PathUnescape(name)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping malformed document key")
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ListUsers returns every user with at least one entry document, sorted.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	keys, err := s.client.ListDocuments(ctx, "users/")
	if err != nil {
		return nil, &domain.StorageError{Backend: backendName, Op: "list", Err: err}
	}

	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, key := range keys {
		parts := strings.Split(strings.TrimPrefix(key, "users/"), "/")
		if len(parts) != 3 || parts[1] != cacheSegment || !strings.HasSuffix(parts[2], documentExt) {
			continue
		}
		user, err := url.PathUnescape(parts[0])
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping malformed document key")
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

func (s *Store) listKeys(ctx context.Context, userID string) ([]string, error) {
	keys, err := s.client.ListDocuments(ctx, userPrefix(userID))
	if err != nil {
		return nil, &domain.StorageError{Backend: backendName, Op: "list", Err: err}
	}

	out := keys[:0]
	for _, key := range keys {
		if strings.HasSuffix(key, documentExt) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *Store) read(ctx context.Context, key string) (*domain.CacheEntry, int64, error) {
	body, err := s.client.GetDocument(ctx, key)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, &domain.StorageError{Backend: backendName, Op: "get", Err: err}
	}

	raw, err := s.decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, 0, &domain.StorageError{Backend: backendName, Op: "decompress", Err: err}
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, 0, &domain.StorageError{Backend: backendName, Op: "decode", Err: err}
	}
	entry.Metadata.SizeBytes = int64(len(body))
	return &entry, int64(len(body)), nil
}

func userPrefix(userID string) string {
	return "users/" + url.PathEscape(userID) + "/" + cacheSegment + "/"
}

func documentKey(userID, symbol string) string {
	return userPrefix(userID) + url.PathEscape(symbol) + documentExt
}
