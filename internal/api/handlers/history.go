package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/history"
	"github.com/zhwen/stockpool/backend/internal/tracker"
	"github.com/zhwen/stockpool/backend/pkg/logger"
	"github.com/zhwen/stockpool/backend/pkg/redis"
)

// HistoryHandler serves per-stock time series and the cross-day
// recurring-stock view.
type HistoryHandler struct {
	store   contracts.RecordStore
	history *history.Reconstructor
	cache   ViewCache
	logger  *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(store contracts.RecordStore, hist *history.Reconstructor, cache ViewCache, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:   store,
		history: hist,
		cache:   cache,
		logger:  log,
	}
}

// GetHistory returns one stock's records across all imported dates,
// oldest first. ?exclude=YYYY-MM-DD drops that date, so the dashboard can
// show "history before today".
// GET /api/history/{code}
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	series, err := h.history.Get(r.Context(), []string{code}, history.Options{
		ExcludeDate: r.URL.Query().Get("exclude"),
	})
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("Failed to load history")
		respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	records := series[code]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"code":  code,
			"count": len(records),
			"items": records,
		},
	})
}

// GetRecurring returns stocks selected on at least minDays distinct dates.
// GET /api/recurring?minDays=2
func (h *HistoryHandler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	minDays := tracker.DefaultMinDays
	if raw := r.URL.Query().Get("minDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid minDays")
			return
		}
		minDays = n
	}

	var recurring []*contracts.RecurringStock
	hit, err := h.cache.Get(ctx, redis.RecurringKey(minDays), &recurring)
	if err != nil {
		h.logger.WithError(err).Warn("Recurring cache read failed")
	}

	if !hit {
		records, err := h.store.ListDailyRecords(ctx)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list records")
			respondError(w, http.StatusInternalServerError, "Failed to list records")
			return
		}

		recurring = tracker.FindRecurring(tracker.PoolsFromRecords(records), minDays)
		if err := h.cache.Set(ctx, redis.RecurringKey(minDays), recurring, redis.TTLMedium); err != nil {
			h.logger.WithError(err).Warn("Recurring cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"minDays": minDays,
			"count":   len(recurring),
			"items":   recurring,
		},
	})
}
