// Package handlers provides HTTP handlers for the financial data cache.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Handler handles cache HTTP requests
type Handler struct {
	service *cache.Service
	log     zerolog.Logger
}

// NewHandler creates a new cache handler
func NewHandler(service *cache.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "cache").Logger(),
	}
}

// HandleGetRecord handles GET /api/cache/users/{userID}/records/{symbol}
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	symbol := chi.URLParam(r, "symbol")

	opts, err := parseGetOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.service.GetData(r.Context(), userID, symbol, opts)
	if !result.Success {
		var validationErr *domain.InputValidationError
		if errors.As(result.Err, &validationErr) {
			h.writeError(w, http.StatusBadRequest, result.Error)
			return
		}
		h.log.Warn().
			Err(result.Err).
			Str("user_id", userID).
			Str("symbol", symbol).
			Msg("Record unavailable")
		h.writeError(w, http.StatusBadGateway, result.Error)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleInvalidateRecord handles DELETE /api/cache/users/{userID}/records/{symbol}
func (h *Handler) HandleInvalidateRecord(w http.ResponseWriter, r *http.Request) {
	ok := h.service.InvalidateCache(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "symbol"))
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"invalidated": ok,
	})
}

// HandleInvalidateUser handles DELETE /api/cache/users/{userID}
func (h *Handler) HandleInvalidateUser(w http.ResponseWriter, r *http.Request) {
	ok := h.service.InvalidateCache(r.Context(), chi.URLParam(r, "userID"), "")
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"invalidated": ok,
	})
}

// HandleIsCached handles GET /api/cache/users/{userID}/records/{symbol}/cached
func (h *Handler) HandleIsCached(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	cached := h.service.IsSymbolCached(r.Context(), chi.URLParam(r, "userID"), symbol)
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"cached": cached,
	})
}

// HandleGetSymbols handles GET /api/cache/users/{userID}/symbols
func (h *Handler) HandleGetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := h.service.GetCachedSymbols(r.Context(), chi.URLParam(r, "userID"))
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// HandleGetStatistics handles GET /api/cache/users/{userID}/statistics
func (h *Handler) HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats := h.service.GetCacheStatistics(r.Context(), chi.URLParam(r, "userID"))
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"statistics":   stats,
		"averageAgeMs": stats.AverageAge.Milliseconds(),
	})
}

// HandlePreload handles POST /api/cache/users/{userID}/preload
func (h *Handler) HandlePreload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(request.Symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	report := h.service.PreloadData(r.Context(), chi.URLParam(r, "userID"), request.Symbols)
	h.writeData(w, http.StatusOK, report)
}

// HandleRefresh handles POST /api/cache/users/{userID}/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	report := h.service.RefreshCacheInBackground(r.Context(), chi.URLParam(r, "userID"))
	h.writeData(w, http.StatusOK, report)
}

// HandleGetConfig handles GET /api/cache/config
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, http.StatusOK, h.service.Configuration())
}

// HandleUpdateConfig handles PATCH /api/cache/config
func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch cache.ConfigPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.UpdateConfiguration(patch); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeData(w, http.StatusOK, h.service.Configuration())
}

func parseGetOptions(r *http.Request) (cache.GetOptions, error) {
	var opts cache.GetOptions
	q := r.URL.Query()

	for name, target := range map[string]*bool{
		"forceRefresh": &opts.ForceRefresh,
		"background":   &opts.Background,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("invalid " + name + " parameter")
		}
		*target = v
	}

	if raw := q.Get("ttlMs"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms <= 0 {
			return opts, errors.New("invalid ttlMs parameter")
		}
		opts.TTL = time.Duration(ms) * time.Millisecond
	}

	return opts, nil
}

// writeData wraps data in the response envelope
func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
