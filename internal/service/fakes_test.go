package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/catalog"
	"github.com/tradepath/roi-ingest/internal/model"
	"github.com/tradepath/roi-ingest/internal/wageapi"
)

var nopLog = zerolog.Nop()

// ─── Stores ────────────────────────────────────────────────────────────

type fakeSchoolStore struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]model.School
	err    error
}

func newFakeSchoolStore() *fakeSchoolStore {
	return &fakeSchoolStore{rows: make(map[string]model.School)}
}

func (s *fakeSchoolStore) Upsert(_ context.Context, school *model.School) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, false, s.err
	}
	key := school.NameKey + "|" + school.Zip
	if existing, ok := s.rows[key]; ok {
		school.ID = existing.ID
		s.rows[key] = *school
		return existing.ID, false, nil
	}
	s.nextID++
	school.ID = s.nextID
	s.rows[key] = *school
	return school.ID, true, nil
}

type fakeProgramStore struct {
	mu   sync.Mutex
	rows map[string]model.Program
	err  error
}

func newFakeProgramStore() *fakeProgramStore {
	return &fakeProgramStore{rows: make(map[string]model.Program)}
}

func (s *fakeProgramStore) InsertIfAbsent(_ context.Context, p *model.Program) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	key := fmt.Sprintf("%d|%s", p.SchoolID, p.CIPCode)
	if _, ok := s.rows[key]; ok {
		return false, nil
	}
	s.rows[key] = *p
	return true, nil
}

type fakeCrosswalkStore struct {
	mu       sync.Mutex
	rows     map[string]model.CrosswalkEntry
	bulkErr  error
	failCIP  map[string]bool
	bulkRuns int
	codes    []string
	titles   map[string]string
}

func newFakeCrosswalkStore() *fakeCrosswalkStore {
	return &fakeCrosswalkStore{rows: make(map[string]model.CrosswalkEntry), failCIP: make(map[string]bool)}
}

func (s *fakeCrosswalkStore) Upsert(_ context.Context, e *model.CrosswalkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCIP[e.CIPCode] {
		return errors.New("constraint violation")
	}
	s.rows[e.Key()] = *e
	return nil
}

func (s *fakeCrosswalkStore) BulkUpsert(ctx context.Context, entries []model.CrosswalkEntry) (int64, error) {
	s.mu.Lock()
	s.bulkRuns++
	err := s.bulkErr
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	for i := range entries {
		if err := s.Upsert(ctx, &entries[i]); err != nil {
			return 0, err
		}
	}
	return int64(len(entries)), nil
}

func (s *fakeCrosswalkStore) DistinctSOCCodes(context.Context) ([]string, error) {
	if s.codes != nil {
		return s.codes, nil
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range s.rows {
		if !seen[e.SOCCode] {
			seen[e.SOCCode] = true
			out = append(out, e.SOCCode)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeCrosswalkStore) TitlesBySOC(context.Context) (map[string]string, error) {
	return s.titles, nil
}

func (s *fakeCrosswalkStore) ListCIPCodes(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, e := range s.rows {
		if !seen[e.CIPCode] {
			seen[e.CIPCode] = true
			out = append(out, e.CIPCode)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeCrosswalkStore) FindByCIP(_ context.Context, cip string) ([]model.CrosswalkEntry, error) {
	var out []model.CrosswalkEntry
	for _, e := range s.rows {
		if e.CIPCode == cip {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SOCCode < out[j].SOCCode })
	return out, nil
}

type fakeWageStore struct {
	mu   sync.Mutex
	rows map[string]model.WageRecord
	err  error
}

func newFakeWageStore() *fakeWageStore {
	return &fakeWageStore{rows: make(map[string]model.WageRecord)}
}

func (s *fakeWageStore) InsertBatch(_ context.Context, records []model.WageRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for _, r := range records {
		key := fmt.Sprintf("%s|%s|%d|%s", r.SOCCode, r.StateAbbr, r.PeriodYear, r.Period)
		if _, ok := s.rows[key]; ok {
			continue
		}
		s.rows[key] = r
		n++
	}
	return n, nil
}

func (s *fakeWageStore) CountBySOC(_ context.Context, soc string) (int64, error) {
	var n int64
	for _, r := range s.rows {
		if r.SOCCode == soc {
			n++
		}
	}
	return n, nil
}

type testStores struct {
	schools   *fakeSchoolStore
	programs  *fakeProgramStore
	crosswalk *fakeCrosswalkStore
	wages     *fakeWageStore
}

func newTestStores() testStores {
	return testStores{
		schools:   newFakeSchoolStore(),
		programs:  newFakeProgramStore(),
		crosswalk: newFakeCrosswalkStore(),
		wages:     newFakeWageStore(),
	}
}

func (ts testStores) writer() *Writer {
	return NewWriter(Stores{
		Schools:   ts.schools,
		Programs:  ts.programs,
		Crosswalk: ts.crosswalk,
		Wages:     ts.wages,
	}, nil, nopLog)
}

// ─── Catalog ───────────────────────────────────────────────────────────

// fakePageSource serves pages by index. errs queues errors returned for a
// page before it succeeds; a page index beyond pages returns an empty page.
type fakePageSource struct {
	mu       sync.Mutex
	pages    []*catalog.Page
	errs     map[int][]error
	endless  *catalog.Page
	requests []int
}

func (f *fakePageSource) FetchPage(_ context.Context, page, _ int) (*catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, page)
	if queued := f.errs[page]; len(queued) > 0 {
		f.errs[page] = queued[1:]
		return nil, queued[0]
	}
	if f.endless != nil {
		return f.endless, nil
	}
	if page < len(f.pages) {
		return f.pages[page], nil
	}
	return &catalog.Page{}, nil
}

func record(t *testing.T, raw string) catalog.Record {
	t.Helper()
	var r catalog.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}

func page(records ...catalog.Record) *catalog.Page {
	return &catalog.Page{Results: records}
}

// ─── Wage API ──────────────────────────────────────────────────────────

type fakeSeriesSource struct {
	mu    sync.Mutex
	fn    func(call int, req wageapi.Request) (*wageapi.Response, error)
	calls []wageapi.Request
}

func (f *fakeSeriesSource) Fetch(_ context.Context, req wageapi.Request) (*wageapi.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	call := len(f.calls)
	f.mu.Unlock()
	return f.fn(call, req)
}

func (f *fakeSeriesSource) keysUsed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.RegistrationKey
	}
	return out
}

// seriesReply answers every requested series with one annual observation.
func seriesReply(req wageapi.Request, year, value string) *wageapi.Response {
	resp := &wageapi.Response{Status: wageapi.StatusSucceeded}
	for _, id := range req.SeriesID {
		resp.Results.Series = append(resp.Results.Series, wageapi.Series{
			SeriesID: id,
			Data:     []wageapi.DataPoint{{Year: year, Period: "A01", Value: value}},
		})
	}
	return resp
}
