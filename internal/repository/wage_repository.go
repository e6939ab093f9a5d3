package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepath/roi-ingest/internal/model"
)

// WageRepository handles bls_salary_data access.
type WageRepository struct {
	pool *pgxpool.Pool
}

// NewWageRepository creates a new WageRepository.
func NewWageRepository(pool *pgxpool.Pool) *WageRepository {
	return &WageRepository{pool: pool}
}

// InsertBatch inserts wage rows in one round trip. A row whose
// (soc_code, state_abbr, period_year, period) already exists is left untouched.
// Returns the number of rows actually inserted.
func (r *WageRepository) InsertBatch(ctx context.Context, records []model.WageRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, w := range records {
		batch.Queue(
			`INSERT INTO bls_salary_data
			     (soc_code, occupation_title, state_abbr, state_fips, period_year, period,
			      annual_mean_salary, annual_median_salary, series_id, run_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (soc_code, state_abbr, period_year, period) DO NOTHING`,
			w.SOCCode, w.OccupationTitle, w.StateAbbr, w.StateFIPS, w.PeriodYear, w.Period,
			w.AnnualMeanSalary, w.AnnualMedianSalary, w.SeriesID, w.RunID,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range records {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert wage %s/%s: %w", records[i].SOCCode, records[i].StateAbbr, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// CountBySOC returns the number of wage rows for an occupation code.
func (r *WageRepository) CountBySOC(ctx context.Context, soc string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bls_salary_data WHERE soc_code = $1`, soc,
	).Scan(&n)
	return n, err
}
