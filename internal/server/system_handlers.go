package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/fincache/internal/di"
	"github.com/aristath/fincache/internal/scheduler"
)

// SystemHandlers serves process and storage diagnostics and manual job
// triggers.
type SystemHandlers struct {
	container *di.Container
	jobs      map[string]scheduler.Job
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, container *di.Container, jobs *di.JobInstances) *SystemHandlers {
	h := &SystemHandlers{
		container: container,
		jobs:      make(map[string]scheduler.Job),
		log:       log.With().Str("handler", "system").Logger(),
	}

	if jobs != nil {
		if jobs.CacheRefresh != nil {
			h.jobs[jobs.CacheRefresh.Name()] = jobs.CacheRefresh
		}
		if jobs.LocalCleanup != nil {
			h.jobs[jobs.LocalCleanup.Name()] = jobs.LocalCleanup
		}
		if jobs.WALCheckpoint != nil {
			h.jobs[jobs.WALCheckpoint.Name()] = jobs.WALCheckpoint
		}
	}
	return h
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status               string   `json:"status"`
	UptimeSeconds        int64    `json:"uptime_seconds"`
	ActiveUsers          int      `json:"active_users"`
	LocalStorage         string   `json:"local_storage"`
	RemoteBackend        string   `json:"remote_backend"`
	RemoteEnabled        bool     `json:"remote_enabled"`
	RemainingAPIRequests int      `json:"remaining_api_requests"`
	Jobs                 []string `json:"jobs"`
	CPUPercent           float64  `json:"cpu_percent"`
	RAMPercent           float64  `json:"ram_percent"`
	Timestamp            string   `json:"timestamp"`
}

// DatabaseStatsResponse represents local cache database statistics
type DatabaseStatsResponse struct {
	Available     bool    `json:"available"`
	Name          string  `json:"name,omitempty"`
	Path          string  `json:"path,omitempty"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	PageSize      int64   `json:"page_size"`
	FreelistCount int64   `json:"freelist_count"`
	LastChecked   string  `json:"last_checked"`
}

// HandleSystemStatus returns process and cache status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.container.Config
	cpuPercent, ramPercent := h.getSystemStats()

	jobNames := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.container.StartedAt).Seconds()),
		ActiveUsers:   len(h.container.CacheService.ActiveUsers()),
		RemoteEnabled: h.container.RemoteStore != nil,
		Jobs:          jobNames,
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if cfg != nil {
		response.LocalStorage = cfg.LocalStorage
		response.RemoteBackend = cfg.RemoteBackend
	}
	if h.container.AlphaVantageClient != nil {
		response.RemainingAPIRequests = h.container.AlphaVantageClient.GetRemainingRequests()
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns statistics for the local cache database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{LastChecked: time.Now().Format(time.RFC3339)}

	db := h.container.LocalDB
	if db == nil {
		h.writeJSON(w, http.StatusOK, response)
		return
	}

	stats, err := db.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeError(w, http.StatusInternalServerError, "failed to read database statistics")
		return
	}

	response.Available = true
	response.Name = db.Name()
	response.Path = db.Path()
	response.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
	response.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
	response.PageCount = stats.PageCount
	response.PageSize = stats.PageSize
	response.FreelistCount = stats.FreelistCount

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerJob runs a registered job in the background
// POST /api/system/jobs/{job}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	job, ok := h.jobs[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	go func() {
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
			return
		}
		h.log.Info().Str("job", name).Msg("Manually triggered job completed")
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

// HandleResetAPICounter restores the Alpha Vantage daily budget
// POST /api/system/alphavantage/reset-counter
func (h *SystemHandlers) HandleResetAPICounter(w http.ResponseWriter, r *http.Request) {
	client := h.container.AlphaVantageClient
	if client == nil {
		h.writeError(w, http.StatusServiceUnavailable, "alpha vantage client not configured")
		return
	}

	client.ResetDailyCounter()
	h.writeJSON(w, http.StatusOK, map[string]int{
		"remaining_api_requests": client.GetRemainingRequests(),
	})
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the status call responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
