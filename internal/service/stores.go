package service

import (
	"context"

	"github.com/tradepath/roi-ingest/internal/model"
	"github.com/tradepath/roi-ingest/internal/repository"
)

// SchoolStore persists institutions.
type SchoolStore interface {
	Upsert(ctx context.Context, s *model.School) (id int, inserted bool, err error)
}

// ProgramStore persists programs.
type ProgramStore interface {
	InsertIfAbsent(ctx context.Context, p *model.Program) (inserted bool, err error)
}

// CrosswalkStore persists crosswalk entries.
type CrosswalkStore interface {
	Upsert(ctx context.Context, e *model.CrosswalkEntry) error
	BulkUpsert(ctx context.Context, entries []model.CrosswalkEntry) (int64, error)
}

// WageStore persists wage records.
type WageStore interface {
	InsertBatch(ctx context.Context, records []model.WageRecord) (int64, error)
}

// OccupationSource lists the occupation codes the wage fetcher works on.
type OccupationSource interface {
	DistinctSOCCodes(ctx context.Context) ([]string, error)
	TitlesBySOC(ctx context.Context) (map[string]string, error)
}

// Stores groups the write-side stores of a run.
type Stores struct {
	Schools   SchoolStore
	Programs  ProgramStore
	Crosswalk CrosswalkStore
	Wages     WageStore
}

var (
	_ SchoolStore      = (*repository.SchoolRepository)(nil)
	_ ProgramStore     = (*repository.ProgramRepository)(nil)
	_ CrosswalkStore   = (*repository.CrosswalkRepository)(nil)
	_ WageStore        = (*repository.WageRepository)(nil)
	_ OccupationSource = (*repository.CrosswalkRepository)(nil)
)
