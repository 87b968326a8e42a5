package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/scoring"
	"github.com/zhwen/stockpool/backend/pkg/logger"
	"github.com/zhwen/stockpool/backend/pkg/redis"
)

// RankingHandler serves scored and ranked day pools.
type RankingHandler struct {
	store  contracts.RecordStore
	cache  ViewCache
	logger *logger.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(store contracts.RecordStore, cache ViewCache, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		store:  store,
		cache:  cache,
		logger: log,
	}
}

// GetRanking returns one date's pool scored and sorted.
// GET /api/ranking/{date}
func (h *RankingHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	ctx := r.Context()

	var ranked []contracts.RankedStock
	hit, err := h.cache.Get(ctx, redis.RankingKey(date), &ranked)
	if err != nil {
		h.logger.WithError(err).Warn("Ranking cache read failed")
	}

	if !hit {
		records, err := h.store.GetDailyRecordsByDate(ctx, date)
		if err != nil {
			h.logger.WithError(err).WithField("date", date).Error("Failed to load records")
			respondError(w, http.StatusInternalServerError, "Failed to load records")
			return
		}
		if len(records) == 0 {
			meta, err := h.store.GetDateMeta(ctx, date)
			if err != nil {
				h.logger.WithError(err).WithField("date", date).Error("Failed to load date meta")
				respondError(w, http.StatusInternalServerError, "Failed to load records")
				return
			}
			if meta == nil {
				respondError(w, http.StatusNotFound, "No data for date "+date)
				return
			}
		}

		ranked = scoring.Rank(records)
		if err := h.cache.Set(ctx, redis.RankingKey(date), ranked, redis.TTLDaily); err != nil {
			h.logger.WithError(err).Warn("Ranking cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"date":   date,
			"count":  len(ranked),
			"items":  ranked,
			"cached": hit,
		},
	})
}

// GetSummary returns one date's aggregate statistics.
// GET /api/summary/{date}
func (h *RankingHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	ctx := r.Context()

	records, err := h.store.GetDailyRecordsByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to load records")
		respondError(w, http.StatusInternalServerError, "Failed to load records")
		return
	}
	if len(records) == 0 {
		meta, err := h.store.GetDateMeta(ctx, date)
		if err != nil {
			h.logger.WithError(err).WithField("date", date).Error("Failed to load date meta")
			respondError(w, http.StatusInternalServerError, "Failed to load records")
			return
		}
		if meta == nil {
			respondError(w, http.StatusNotFound, "No data for date "+date)
			return
		}
	}

	respondJSON(w, http.StatusOK, scoring.Summarize(date, records))
}
