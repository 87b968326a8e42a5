// Package storetest provides an in-memory contracts.RecordStore for tests.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// MemStore is an in-memory RecordStore with copy-on-write transactions:
// a failed WithinTx leaves the store untouched, matching the all-or-nothing
// contract of the real store.
type MemStore struct {
	mu    sync.Mutex
	state *state

	// FailWrites makes every transactional write fail, for testing
	// rollback behavior.
	FailWrites error
}

type state struct {
	infos    map[string]contracts.StockInfo
	records  map[string]map[string]contracts.DailyRecord // date -> code -> record
	metas    map[string]contracts.DateMeta
	analyses map[[3]string]contracts.AnalysisSummary // (date, kind, code)
}

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{state: newState()}
}

func newState() *state {
	return &state{
		infos:    make(map[string]contracts.StockInfo),
		records:  make(map[string]map[string]contracts.DailyRecord),
		metas:    make(map[string]contracts.DateMeta),
		analyses: make(map[[3]string]contracts.AnalysisSummary),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.infos {
		c.infos[k] = v
	}
	for date, byCode := range s.records {
		m := make(map[string]contracts.DailyRecord, len(byCode))
		for code, rec := range byCode {
			m[code] = rec
		}
		c.records[date] = m
	}
	for k, v := range s.metas {
		c.metas[k] = v
	}
	for k, v := range s.analyses {
		c.analyses[k] = v
	}
	return c
}

// WithinTx runs fn against a clone and swaps it in only on success.
func (m *MemStore) WithinTx(ctx context.Context, fn func(tx contracts.RecordTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	if err := fn(&memTx{state: next, fail: m.FailWrites}); err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *MemStore) GetStockInfo(ctx context.Context, code string) (*contracts.StockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.state.infos[code]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (m *MemStore) ListStockInfos(ctx context.Context) ([]*contracts.StockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var infos []*contracts.StockInfo
	for _, info := range m.state.infos {
		i := info
		infos = append(infos, &i)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos, nil
}

func (m *MemStore) GetDailyRecord(ctx context.Context, code, date string) (*contracts.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.state.records[date][code]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemStore) GetDailyRecordsByDate(ctx context.Context, date string) ([]*contracts.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []*contracts.DailyRecord
	for _, rec := range m.state.records[date] {
		r := rec
		records = append(records, &r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Code < records[j].Code })
	return records, nil
}

func (m *MemStore) GetDailyRecordsByCodes(ctx context.Context, codes []string) (map[string][]*contracts.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}

	result := make(map[string][]*contracts.DailyRecord)
	for _, byCode := range m.state.records {
		for code, rec := range byCode {
			if _, ok := want[code]; !ok {
				continue
			}
			r := rec
			result[code] = append(result[code], &r)
		}
	}
	for _, seq := range result {
		sort.Slice(seq, func(i, j int) bool { return seq[i].Date < seq[j].Date })
	}
	return result, nil
}

func (m *MemStore) ListDailyRecords(ctx context.Context) ([]*contracts.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []*contracts.DailyRecord
	for _, byCode := range m.state.records {
		for _, rec := range byCode {
			r := rec
			records = append(records, &r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].Code < records[j].Code
	})
	return records, nil
}

func (m *MemStore) GetDateMeta(ctx context.Context, date string) (*contracts.DateMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.state.metas[date]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (m *MemStore) ListDateMetas(ctx context.Context) ([]*contracts.DateMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var metas []*contracts.DateMeta
	for _, meta := range m.state.metas {
		mm := meta
		metas = append(metas, &mm)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Date < metas[j].Date })
	return metas, nil
}

func (m *MemStore) GetAnalysis(ctx context.Context, date, kind, code string) (*contracts.AnalysisSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary, ok := m.state.analyses[[3]string{date, kind, code}]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func (m *MemStore) PutAnalysis(ctx context.Context, summary *contracts.AnalysisSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.analyses[[3]string{summary.Date, summary.Kind, summary.Code}] = *summary
	return nil
}

func (m *MemStore) ListAnalyses(ctx context.Context) ([]*contracts.AnalysisSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []*contracts.AnalysisSummary
	for _, summary := range m.state.analyses {
		s := summary
		summaries = append(summaries, &s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Date != summaries[j].Date {
			return summaries[i].Date < summaries[j].Date
		}
		if summaries[i].Kind != summaries[j].Kind {
			return summaries[i].Kind < summaries[j].Kind
		}
		return summaries[i].Code < summaries[j].Code
	})
	return summaries, nil
}

func (m *MemStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = newState()
	return nil
}

type memTx struct {
	state *state
	fail  error
}

func (t *memTx) UpsertStockInfo(ctx context.Context, info *contracts.StockInfo) error {
	if t.fail != nil {
		return t.fail
	}
	t.state.infos[info.Code] = *info
	return nil
}

func (t *memTx) HasDailyRecord(ctx context.Context, code, date string) (bool, error) {
	_, ok := t.state.records[date][code]
	return ok, nil
}

func (t *memTx) PutDailyRecord(ctx context.Context, rec *contracts.DailyRecord) error {
	if t.fail != nil {
		return t.fail
	}

	byCode, ok := t.state.records[rec.Date]
	if !ok {
		byCode = make(map[string]contracts.DailyRecord)
		t.state.records[rec.Date] = byCode
	}

	stored := *rec
	if prev, ok := byCode[rec.Code]; ok {
		stored.CreatedAt = prev.CreatedAt // first write wins
	}
	byCode[rec.Code] = stored
	return nil
}

func (t *memTx) DeleteDailyRecordsByDate(ctx context.Context, date string) (int64, error) {
	if t.fail != nil {
		return 0, t.fail
	}
	n := int64(len(t.state.records[date]))
	delete(t.state.records, date)
	return n, nil
}

func (t *memTx) PutDateMeta(ctx context.Context, meta *contracts.DateMeta) error {
	if t.fail != nil {
		return t.fail
	}
	t.state.metas[meta.Date] = *meta
	return nil
}

func (t *memTx) DeleteDateMeta(ctx context.Context, date string) error {
	if t.fail != nil {
		return t.fail
	}
	delete(t.state.metas, date)
	return nil
}

func (t *memTx) PutAnalysis(ctx context.Context, summary *contracts.AnalysisSummary) error {
	if t.fail != nil {
		return t.fail
	}
	t.state.analyses[[3]string{summary.Date, summary.Kind, summary.Code}] = *summary
	return nil
}

var _ contracts.RecordStore = (*MemStore)(nil)
var _ contracts.RecordTx = (*memTx)(nil)
