package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/model"
)

func TestUpsertInstitution(t *testing.T) {
	ts := newTestStores()
	w := ts.writer()
	ctx := context.Background()

	s := &model.School{Name: "Metro  Trades", Zip: "10001", City: "New York"}
	id, inserted, err := w.UpsertInstitution(ctx, s)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "metro trades", s.NameKey)

	again := &model.School{Name: "METRO TRADES", Zip: "10001", City: "Manhattan"}
	id2, inserted, err := w.UpsertInstitution(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id, id2)
	assert.Equal(t, "Manhattan", ts.schools.rows["metro trades|10001"].City)

	_, _, err = w.UpsertInstitution(ctx, &model.School{Name: "No Zip"})
	assert.True(t, etlerr.IsKind(err, etlerr.KindValidation))
	assert.Equal(t, 1, w.Stats().Invalid)
}

func TestWriteHarvestedSkipsInvalidProgram(t *testing.T) {
	ts := newTestStores()
	w := ts.writer()

	err := w.WriteHarvested(context.Background(), model.HarvestedSchool{
		School: model.School{Name: "Metro Trades", Zip: "10001"},
		Programs: []model.Program{
			{CIPCode: "4601", Name: "Construction"},
			{CIPCode: "4701"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, ts.programs.rows, 1)
	assert.Equal(t, 1, w.Stats().Invalid)
	assert.Equal(t, 1, w.Stats().ProgramsInserted)
}

func TestInsertWagesSkipsInvalid(t *testing.T) {
	ts := newTestStores()
	w := ts.writer()
	mean := 52000.0
	runID := uuid.New()

	n, err := w.InsertWages(context.Background(), []model.WageRecord{
		{SOCCode: "47-2111", StateAbbr: "TX", StateFIPS: "48", PeriodYear: 2024, Period: "A01", AnnualMeanSalary: &mean, RunID: runID},
		{SOCCode: "472111", StateAbbr: "TX", StateFIPS: "48", PeriodYear: 2024, Period: "A01", RunID: runID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, w.Stats().Invalid)
	assert.Equal(t, 1, w.Stats().WagesInserted)
}

func TestWriterCountsStoreFailures(t *testing.T) {
	ts := newTestStores()
	w := ts.writer()
	ctx := context.Background()
	mean := 52000.0

	ts.schools.err = errors.New("connection reset")
	err := w.WriteHarvested(ctx, model.HarvestedSchool{
		School:   model.School{Name: "Metro Trades", Zip: "10001"},
		Programs: []model.Program{{CIPCode: "4601", Name: "Construction"}},
	})
	require.Error(t, err)

	ts.schools.err = nil
	ts.programs.err = errors.New("connection reset")
	err = w.WriteHarvested(ctx, model.HarvestedSchool{
		School:   model.School{Name: "Metro Trades", Zip: "10001"},
		Programs: []model.Program{{CIPCode: "4601", Name: "Construction"}},
	})
	require.Error(t, err)

	ts.wages.err = errors.New("connection reset")
	_, err = w.InsertWages(ctx, []model.WageRecord{
		{SOCCode: "47-2111", StateAbbr: "TX", StateFIPS: "48", PeriodYear: 2024, Period: "A01", AnnualMeanSalary: &mean, RunID: uuid.New()},
		{SOCCode: "47-2061", StateAbbr: "TX", StateFIPS: "48", PeriodYear: 2024, Period: "A01", AnnualMeanSalary: &mean, RunID: uuid.New()},
	})
	require.Error(t, err)

	stats := w.Stats()
	assert.Equal(t, 1, stats.SchoolsFailed)
	assert.Equal(t, 1, stats.SchoolsInserted)
	assert.Equal(t, 1, stats.ProgramsFailed)
	assert.Equal(t, 0, stats.ProgramsInserted)
	assert.Equal(t, 2, stats.WagesFailed)
	assert.Equal(t, 0, stats.WagesInserted)
}
