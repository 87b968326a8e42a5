package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhwen/stockpool/backend/internal/api"
	"github.com/zhwen/stockpool/backend/internal/api/handlers"
	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/history"
	"github.com/zhwen/stockpool/backend/internal/importer"
	"github.com/zhwen/stockpool/backend/internal/parser"
	"github.com/zhwen/stockpool/backend/internal/storetest"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// memCache is an always-on in-memory handlers.ViewCache, so tests exercise
// the cache hit and invalidation paths that a disabled redis client skips.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *memCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	m.mu.Unlock()
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *storetest.MemStore) {
	t.Helper()
	log := logger.NewNop()

	store := storetest.New()
	cache := newMemCache()

	imp := importer.New(store, nil, log)
	hub := api.NewEventHub(log)
	t.Cleanup(hub.Close)

	router := api.NewRouter(api.Deps{
		Import:   handlers.NewImportHandler(imp, parser.New(log), cache, hub, log),
		Pool:     handlers.NewPoolHandler(store, log),
		Ranking:  handlers.NewRankingHandler(store, cache, log),
		History:  handlers.NewHistoryHandler(store, history.New(store), cache, log),
		Analysis: handlers.NewAnalysisHandler(store, cache, hub, log),
		Hub:      hub,
		Logger:   log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func importDay(t *testing.T, srv *httptest.Server, date string, stocks ...*contracts.DailyRecord) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/import", handlers.ImportRequest{
		Date:   date,
		Stocks: stocks,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImportAndRanking(t *testing.T) {
	srv, _ := newTestServer(t)

	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 4.0, Turnover: 5.0, Amplitude: 3.5, Formulas: []string{"F1", "F2"}},
		&contracts.DailyRecord{Code: "600519", Name: "贵州茅台", Change: -1.0, Turnover: 0.5, Amplitude: 1.0, Formulas: []string{"F1"}},
	)

	var list struct {
		Data struct {
			Count int                   `json:"count"`
			Items []*contracts.DateMeta `json:"items"`
		} `json:"data"`
	}
	resp, err := http.Get(srv.URL + "/api/dates")
	require.NoError(t, err)
	decodeBody(t, resp, &list)
	require.Equal(t, 1, list.Data.Count)
	assert.Equal(t, "2026-08-21", list.Data.Items[0].Date)
	assert.Equal(t, 2, list.Data.Items[0].StockCount)

	var ranking struct {
		Data struct {
			Count int                     `json:"count"`
			Items []contracts.RankedStock `json:"items"`
		} `json:"data"`
	}
	resp, err = http.Get(srv.URL + "/api/ranking/2026-08-21")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &ranking)
	require.Equal(t, 2, ranking.Data.Count)
	assert.Equal(t, "000001", ranking.Data.Items[0].Code, "stronger stock ranks first")
	assert.Equal(t, 1, ranking.Data.Items[0].Rank)

	resp, err = http.Get(srv.URL + "/api/ranking/2099-01-01")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMultipartImport(t *testing.T) {
	srv, _ := newTestServer(t)

	export := "代码\t名称\t涨幅%\t现价\n" +
		"放量突破\n" +
		"=\"000001\"\t平安银行\t2.35\t11.20\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "20260821.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(export))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/import", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data contracts.BatchResult `json:"data"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, 1, body.Data.Succeeded)
	require.Len(t, body.Data.Files, 1)
	assert.True(t, body.Data.Files[0].OK)
	assert.Equal(t, "2026-08-21", body.Data.Files[0].Date, "date from file name")
	assert.Equal(t, 1, body.Data.Files[0].Inserted)
}

func TestImportStockMerge(t *testing.T) {
	srv, store := newTestServer(t)

	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 1.0, Formulas: []string{"F1"}})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/import/stock", handlers.ImportStockRequest{
		Date:  "2026-08-21",
		Stock: &contracts.DailyRecord{Code: "300750", Name: "宁德时代", Change: 3.0, Formulas: []string{"F2"}},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec, err := store.GetDailyRecord(context.Background(), "300750", "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "宁德时代", rec.Name)
}

func TestDeleteDate(t *testing.T) {
	srv, _ := newTestServer(t)

	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Formulas: []string{"F1"}})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/dates/2026-08-21", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/dates/2026-08-21")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryAndRecurring(t *testing.T) {
	srv, _ := newTestServer(t)

	importDay(t, srv, "2026-08-20",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 1.0, Formulas: []string{"F1"}})
	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 2.0, Formulas: []string{"F2"}})

	var hist struct {
		Data struct {
			Count int                      `json:"count"`
			Items []*contracts.DailyRecord `json:"items"`
		} `json:"data"`
	}
	resp, err := http.Get(srv.URL + "/api/history/000001?exclude=2026-08-21")
	require.NoError(t, err)
	decodeBody(t, resp, &hist)
	require.Equal(t, 1, hist.Data.Count)
	assert.Equal(t, "2026-08-20", hist.Data.Items[0].Date)

	var recurring struct {
		Data struct {
			Count int                         `json:"count"`
			Items []*contracts.RecurringStock `json:"items"`
		} `json:"data"`
	}
	resp, err = http.Get(srv.URL + "/api/recurring?minDays=2")
	require.NoError(t, err)
	decodeBody(t, resp, &recurring)
	require.Equal(t, 1, recurring.Data.Count)
	assert.Equal(t, "000001", recurring.Data.Items[0].Code)
	assert.Equal(t, 2, recurring.Data.Items[0].DateCount)
}

func TestAnalysisRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/analysis/2026-08-21/daily", handlers.PutAnalysisRequest{
		Content: "资金轮动迹象明显",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got contracts.AnalysisSummary
	resp, err := http.Get(srv.URL + "/api/analysis/2026-08-21/daily")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &got)
	assert.Equal(t, "资金轮动迹象明显", got.Content)

	resp, err = http.Get(srv.URL + "/api/analysis/2026-08-21/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetWipesEverything(t *testing.T) {
	srv, store := newTestServer(t)

	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Formulas: []string{"F1"}})

	resp, err := http.Post(srv.URL+"/api/admin/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metas, err := store.ListDateMetas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestWriteInvalidatesCachedViews(t *testing.T) {
	srv, _ := newTestServer(t)

	importDay(t, srv, "2026-08-20",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 1.0, Formulas: []string{"F1"}})
	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 2.0, Formulas: []string{"F2"}})

	var ranking struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	var recurring struct {
		Data struct {
			Items []*contracts.RecurringStock `json:"items"`
		} `json:"data"`
	}

	// Prime both cached views.
	resp, err := http.Get(srv.URL + "/api/ranking/2026-08-21")
	require.NoError(t, err)
	decodeBody(t, resp, &ranking)
	require.Equal(t, 1, ranking.Data.Count)

	resp, err = http.Get(srv.URL + "/api/recurring?minDays=2")
	require.NoError(t, err)
	decodeBody(t, resp, &recurring)
	require.Len(t, recurring.Data.Items, 1)
	require.Equal(t, 2, recurring.Data.Items[0].DateCount)

	// A single-stock merge must show up in the next ranking read.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/import/stock", handlers.ImportStockRequest{
		Date:  "2026-08-21",
		Stock: &contracts.DailyRecord{Code: "300750", Name: "宁德时代", Change: 3.0, Formulas: []string{"F3"}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/ranking/2026-08-21")
	require.NoError(t, err)
	decodeBody(t, resp, &ranking)
	assert.Equal(t, 2, ranking.Data.Count, "merged stock visible immediately")

	// A new day's import must show up in the next recurring read.
	importDay(t, srv, "2026-08-22",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 0.5, Formulas: []string{"F1"}})

	resp, err = http.Get(srv.URL + "/api/recurring?minDays=2")
	require.NoError(t, err)
	decodeBody(t, resp, &recurring)
	require.Len(t, recurring.Data.Items, 1)
	assert.Equal(t, 3, recurring.Data.Items[0].DateCount, "new date visible immediately")
}

func TestResetFlushesCachedViews(t *testing.T) {
	srv, _ := newTestServer(t)

	importDay(t, srv, "2026-08-21",
		&contracts.DailyRecord{Code: "000001", Name: "平安银行", Change: 1.0, Formulas: []string{"F1"}})

	// Prime the ranking cache.
	resp, err := http.Get(srv.URL + "/api/ranking/2026-08-21")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/admin/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/ranking/2026-08-21")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no cached ranking survives a reset")
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRateLimit(t *testing.T) {
	log := logger.NewNop()
	store := storetest.New()
	cache := newMemCache()
	hub := api.NewEventHub(log)
	t.Cleanup(hub.Close)

	router := api.NewRouter(api.Deps{
		Import:    handlers.NewImportHandler(importer.New(store, nil, log), parser.New(log), cache, hub, log),
		Pool:      handlers.NewPoolHandler(store, log),
		Ranking:   handlers.NewRankingHandler(store, cache, log),
		History:   handlers.NewHistoryHandler(store, history.New(store), cache, log),
		Analysis:  handlers.NewAnalysisHandler(store, cache, hub, log),
		Hub:       hub,
		Logger:    log,
		RateRPS:   1,
		RateBurst: 1,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	statuses := make(map[int]int)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(fmt.Sprintf("%s/health", srv.URL))
		require.NoError(t, err)
		resp.Body.Close()
		statuses[resp.StatusCode]++
	}
	assert.Equal(t, 1, statuses[http.StatusOK], "burst of one")
	assert.Equal(t, 2, statuses[http.StatusTooManyRequests])
}
