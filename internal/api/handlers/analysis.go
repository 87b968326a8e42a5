package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// AnalysisHandler serves the cached narrative blobs and admin operations.
type AnalysisHandler struct {
	store  contracts.RecordStore
	cache  ViewCache
	events EventSink
	logger *logger.Logger
	now    func() time.Time
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(store contracts.RecordStore, cache ViewCache, events EventSink, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		store:  store,
		cache:  cache,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// Get returns one stored analysis blob.
// GET /api/analysis/{date}/{kind}?code=...
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, kind := vars["date"], vars["kind"]
	code := r.URL.Query().Get("code")

	summary, err := h.store.GetAnalysis(r.Context(), date, kind, code)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"date": date,
			"kind": kind,
		}).Error("Failed to get analysis")
		respondError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}
	if summary == nil {
		respondError(w, http.StatusNotFound, "No analysis for "+date+"/"+kind)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// PutAnalysisRequest is the JSON body for storing an analysis blob.
type PutAnalysisRequest struct {
	Code    string `json:"code,omitempty"`
	Content string `json:"content"`
}

// Put stores an analysis blob, overwriting any previous one for the key.
// PUT /api/analysis/{date}/{kind}
func (h *AnalysisHandler) Put(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, kind := vars["date"], vars["kind"]

	var req PutAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "Missing content")
		return
	}

	summary := &contracts.AnalysisSummary{
		Date:      date,
		Kind:      kind,
		Code:      req.Code,
		Content:   req.Content,
		UpdatedAt: h.now(),
	}
	if err := h.store.PutAnalysis(r.Context(), summary); err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"date": date,
			"kind": kind,
		}).Error("Failed to store analysis")
		respondError(w, http.StatusInternalServerError, "Failed to store analysis")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// Reset wipes the whole store.
// POST /api/admin/reset
func (h *AnalysisHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		h.logger.WithError(err).Error("Reset failed")
		respondError(w, http.StatusInternalServerError, "Reset failed")
		return
	}

	// Every cached view describes data that no longer exists.
	if h.cache != nil {
		if err := h.cache.DeleteByPrefix(r.Context(), ""); err != nil {
			h.logger.WithError(err).Warn("Cache flush after reset failed")
		}
	}

	h.logger.Warn("Store reset via API")
	if h.events != nil {
		h.events.Publish("reset", "", nil)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
