package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/model"
)

type fakeReportStore struct {
	counts  []model.TableCount
	sample  []string
	orphans []model.OrphanCode
}

func (f *fakeReportStore) CountRows(context.Context) ([]model.TableCount, error) {
	return f.counts, nil
}

func (f *fakeReportStore) SampleProgramCodes(_ context.Context, limit int) ([]string, error) {
	if limit < len(f.sample) {
		return f.sample[:limit], nil
	}
	return f.sample, nil
}

func (f *fakeReportStore) OrphanProgramCodes(context.Context) ([]model.OrphanCode, error) {
	return f.orphans, nil
}

func TestDiagnose(t *testing.T) {
	ts := newTestStores()
	ctx := context.Background()

	_, err := ts.writer().UpsertCrosswalk(ctx, []model.CrosswalkEntry{
		{CIPCode: "4805", SOCCode: "51-4121", Confidence: 100, Source: model.SourceCurated},
		{CIPCode: "4805", SOCCode: "51-4041", Confidence: 100, Source: model.SourceCurated},
	})
	require.NoError(t, err)
	_, err = ts.wages.InsertBatch(ctx, []model.WageRecord{
		{SOCCode: "51-4121", StateAbbr: "TX", PeriodYear: 2024, Period: "A01"},
		{SOCCode: "51-4121", StateAbbr: "OK", PeriodYear: 2024, Period: "A01"},
	})
	require.NoError(t, err)

	reports := &fakeReportStore{
		sample:  []string{"4805", "4701"},
		orphans: []model.OrphanCode{{CIPCode: "4701", Programs: 3}, {CIPCode: "4806", Programs: 1}},
	}
	svc := NewReportService(reports, ts.crosswalk, ts.wages, nopLog)

	d, err := svc.Diagnose(ctx, 10)
	require.NoError(t, err)

	require.Len(t, d.Traces, 2)
	assert.Equal(t, model.LinkageTrace{
		CIPCode:    "4805",
		SOCCodes:   []string{"51-4041", "51-4121"},
		WageCounts: []int64{0, 2},
	}, d.Traces[0])
	assert.Empty(t, d.Traces[1].SOCCodes)

	require.Len(t, d.Orphans, 2)
	assert.Equal(t, "4701", d.Orphans[0].CIPCode)
	assert.Equal(t, "4805", d.Orphans[1].Suggestion)
	assert.Greater(t, d.Orphans[1].Similarity, minSuggestionSimilarity)
}

func TestCounts(t *testing.T) {
	reports := &fakeReportStore{counts: []model.TableCount{{Table: "schools", Rows: 12}}}
	svc := NewReportService(reports, newFakeCrosswalkStore(), newFakeWageStore(), nopLog)

	got, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reports.counts, got)
}

func TestClosestCode(t *testing.T) {
	code, score := closestCode("46.0302", []string{"11.0901", "46.0301", "51.3801"})
	assert.Equal(t, "46.0301", code)
	assert.GreaterOrEqual(t, score, minSuggestionSimilarity)

	code, score = closestCode("99.9999", []string{"11.0901"})
	assert.Empty(t, code)
	assert.Zero(t, score)

	code, _ = closestCode("46.0302", nil)
	assert.Empty(t, code)
}
