package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/zhwen/stockpool/backend/internal/api/handlers"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// Publish implements handlers.EventSink on the hub.
func (h *EventHub) Publish(eventType, date string, data interface{}) {
	h.Broadcast(Event{Type: eventType, Date: date, Data: data})
}

// Deps bundles everything the router mounts.
type Deps struct {
	Import   *handlers.ImportHandler
	Pool     *handlers.PoolHandler
	Ranking  *handlers.RankingHandler
	History  *handlers.HistoryHandler
	Analysis *handlers.AnalysisHandler
	Hub      *EventHub
	Logger   *logger.Logger

	// RateRPS <= 0 disables rate limiting.
	RateRPS   float64
	RateBurst int
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Dashboard event stream
	r.HandleFunc("/ws", d.Hub.ServeWS)

	api := r.PathPrefix("/api").Subrouter()

	// Import endpoints
	api.HandleFunc("/import", d.Import.Import).Methods("POST")
	api.HandleFunc("/import/stock", d.Import.ImportStock).Methods("POST")

	// Date pool endpoints
	api.HandleFunc("/dates", d.Pool.ListDates).Methods("GET")
	api.HandleFunc("/dates/{date}", d.Pool.GetDate).Methods("GET")
	api.HandleFunc("/dates/{date}", d.Import.DeleteDate).Methods("DELETE")
	api.HandleFunc("/dates/{date}/stocks", d.Pool.GetStocks).Methods("GET")

	// Scoring endpoints
	api.HandleFunc("/ranking/{date}", d.Ranking.GetRanking).Methods("GET")
	api.HandleFunc("/summary/{date}", d.Ranking.GetSummary).Methods("GET")

	// History and cross-day tracking
	api.HandleFunc("/history/{code}", d.History.GetHistory).Methods("GET")
	api.HandleFunc("/recurring", d.History.GetRecurring).Methods("GET")

	// Analysis blobs
	api.HandleFunc("/analysis/{date}/{kind}", d.Analysis.Get).Methods("GET")
	api.HandleFunc("/analysis/{date}/{kind}", d.Analysis.Put).Methods("PUT")

	// Admin
	api.HandleFunc("/admin/reset", d.Analysis.Reset).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(d.Logger))
	r.Use(recoveryMiddleware(d.Logger))
	r.Use(corsMiddleware)
	if d.RateRPS > 0 {
		r.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(d.RateRPS), d.RateBurst)))
	}

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "stockpool-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware lets the dashboard frontend call the API from another
// origin during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies one global limiter to all requests.
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
