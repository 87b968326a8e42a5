package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/importer"
	"github.com/zhwen/stockpool/backend/pkg/logger"
	"github.com/zhwen/stockpool/backend/pkg/redis"
)

// EventSink receives notifications about store mutations. The websocket
// hub implements it; tests pass a stub.
type EventSink interface {
	Publish(eventType, date string, data interface{})
}

// UploadParser turns uploaded export content into parsed files.
type UploadParser interface {
	ParseUpload(name string, data []byte) (*contracts.ParsedFile, error)
}

// ImportHandler handles import-related API endpoints
type ImportHandler struct {
	importer *importer.Importer
	parser   UploadParser
	cache    ViewCache
	events   EventSink
	logger   *logger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(imp *importer.Importer, parser UploadParser, cache ViewCache, events EventSink, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		importer: imp,
		parser:   parser,
		cache:    cache,
		events:   events,
		logger:   log,
	}
}

// ImportRequest is the JSON body for a direct (non-file) import.
type ImportRequest struct {
	Date   string                   `json:"date"`
	Stocks []*contracts.DailyRecord `json:"stocks"`
	Index  *contracts.IndexSnapshot `json:"index,omitempty"`
}

// Import ingests one or more day pools.
// POST /api/import          multipart upload of TDX export files
// POST /api/import?date=... JSON body {date, stocks, index}
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		h.importUploads(w, r)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date == "" {
		respondError(w, http.StatusBadRequest, "Missing date")
		return
	}

	result, err := h.importer.ImportDay(r.Context(), req.Date, req.Stocks, req.Index, importer.Options{})
	if err != nil {
		h.logger.WithError(err).WithField("date", req.Date).Error("Import failed")
		respondError(w, http.StatusInternalServerError, "Import failed: "+err.Error())
		return
	}

	h.afterWrite("import", req.Date, result)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}

// importUploads handles the multipart branch: every uploaded file is one
// export, imported independently so a bad file does not block the rest.
func (h *ImportHandler) importUploads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if single := r.MultipartForm.File["file"]; len(single) > 0 {
		files = append(files, single...)
	}
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	dateOverride := r.URL.Query().Get("date")
	if dateOverride == "" {
		dateOverride = r.FormValue("date")
	}

	batch := &contracts.BatchResult{}
	for _, fh := range files {
		fr := contracts.FileResult{File: fh.Filename}

		parsed, err := h.parseUpload(fh)
		if err == nil {
			if dateOverride != "" {
				parsed.Date = dateOverride
			}
			var result *contracts.ImportResult
			result, err = h.importer.ImportFile(r.Context(), parsed, importer.Options{})
			if err == nil {
				fr.OK = true
				fr.Date = parsed.Date
				fr.Inserted = result.Inserted
				fr.Updated = result.Updated
				h.afterWrite("import", parsed.Date, result)
			}
		}
		if err != nil {
			h.logger.WithError(err).WithField("file", fh.Filename).Warn("File import failed")
			fr.Error = err.Error()
			batch.Failed++
		} else {
			batch.Succeeded++
		}
		batch.Files = append(batch.Files, fr)
	}

	status := http.StatusOK
	if batch.Succeeded == 0 {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, map[string]interface{}{
		"success": batch.Failed == 0,
		"data":    batch,
	})
}

func (h *ImportHandler) parseUpload(fh *multipart.FileHeader) (*contracts.ParsedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return h.parser.ParseUpload(fh.Filename, data)
}

// ImportStockRequest is the JSON body for a single-stock merge add.
type ImportStockRequest struct {
	Date  string                 `json:"date"`
	Stock *contracts.DailyRecord `json:"stock"`
}

// ImportStock merges one stock into an existing date without touching the
// date's index benchmark.
// POST /api/import/stock
func (h *ImportHandler) ImportStock(w http.ResponseWriter, r *http.Request) {
	var req ImportStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date == "" || req.Stock == nil {
		respondError(w, http.StatusBadRequest, "Missing date or stock")
		return
	}

	result, err := h.importer.ImportDay(r.Context(), req.Date, []*contracts.DailyRecord{req.Stock},
		nil, importer.Options{MergeIntoDate: req.Date})
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"date": req.Date,
			"code": req.Stock.Code,
		}).Error("Stock merge failed")
		respondError(w, http.StatusInternalServerError, "Import failed: "+err.Error())
		return
	}

	h.afterWrite("import", req.Date, result)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}

// DeleteDate removes a whole day pool.
// DELETE /api/dates/{date}
func (h *ImportHandler) DeleteDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	deleted, err := h.importer.DeleteDate(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Delete failed")
		respondError(w, http.StatusInternalServerError, "Delete failed: "+err.Error())
		return
	}

	h.afterWrite("delete", date, nil)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"date":    date,
			"deleted": deleted,
		},
	})
}

// afterWrite invalidates every cached view the write can stale and
// notifies the dashboard. Both are best-effort.
func (h *ImportHandler) afterWrite(eventType, date string, data interface{}) {
	if h.cache != nil {
		ctx := context.Background()
		if err := h.cache.Delete(ctx, redis.RankingKey(date)); err != nil {
			h.logger.WithError(err).Warn("Ranking cache invalidation failed")
		}
		// The recurring view spans dates, so any write can change it.
		if err := h.cache.DeleteByPrefix(ctx, redis.RecurringPrefix); err != nil {
			h.logger.WithError(err).Warn("Recurring cache invalidation failed")
		}
	}
	if h.events != nil {
		h.events.Publish(eventType, date, data)
	}
}
