package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// PoolHandler serves the per-date pool views.
type PoolHandler struct {
	store  contracts.RecordStore
	logger *logger.Logger
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(store contracts.RecordStore, log *logger.Logger) *PoolHandler {
	return &PoolHandler{
		store:  store,
		logger: log,
	}
}

// ListDates returns every imported date's summary, newest data included.
// GET /api/dates
func (h *PoolHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	metas, err := h.store.ListDateMetas(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list dates")
		respondError(w, http.StatusInternalServerError, "Failed to list dates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"count": len(metas),
			"items": metas,
		},
	})
}

// GetDate returns one date's summary.
// GET /api/dates/{date}
func (h *PoolHandler) GetDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	meta, err := h.store.GetDateMeta(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to get date meta")
		respondError(w, http.StatusInternalServerError, "Failed to get date")
		return
	}
	if meta == nil {
		respondError(w, http.StatusNotFound, "No data for date "+date)
		return
	}

	respondJSON(w, http.StatusOK, meta)
}

// GetStocks returns one date's full stock list.
// GET /api/dates/{date}/stocks
func (h *PoolHandler) GetStocks(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	ctx := r.Context()

	records, err := h.store.GetDailyRecordsByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to get records")
		respondError(w, http.StatusInternalServerError, "Failed to get records")
		return
	}

	if len(records) == 0 {
		meta, err := h.store.GetDateMeta(ctx, date)
		if err != nil {
			h.logger.WithError(err).WithField("date", date).Error("Failed to get date meta")
			respondError(w, http.StatusInternalServerError, "Failed to get records")
			return
		}
		if meta == nil {
			respondError(w, http.StatusNotFound, "No data for date "+date)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"date":  date,
			"count": len(records),
			"items": records,
		},
	})
}
