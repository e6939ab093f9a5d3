package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepath/roi-ingest/internal/model"
)

// PipelineTables lists the tables owned by the pipeline, in load order.
var PipelineTables = []string{"schools", "programs", "cip_soc_matrix", "bls_salary_data"}

// ReportRepository runs read-only integrity queries.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// CountRows returns the row count of every pipeline table.
func (r *ReportRepository) CountRows(ctx context.Context) ([]model.TableCount, error) {
	counts := make([]model.TableCount, 0, len(PipelineTables))
	for _, table := range PipelineTables {
		var n int64
		// Table names come from the fixed list above, never from input.
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, err
		}
		counts = append(counts, model.TableCount{Table: table, Rows: n})
	}
	return counts, nil
}

// SampleProgramCodes returns up to limit distinct program codes.
func (r *ReportRepository) SampleProgramCodes(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT cip_code FROM programs ORDER BY cip_code LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// OrphanProgramCodes returns program codes that have no crosswalk entry,
// with the number of programs carrying each.
func (r *ReportRepository) OrphanProgramCodes(ctx context.Context) ([]model.OrphanCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.cip_code, COUNT(*)
		 FROM programs p
		 WHERE NOT EXISTS (SELECT 1 FROM cip_soc_matrix m WHERE m.cip_code = p.cip_code)
		 GROUP BY p.cip_code
		 ORDER BY COUNT(*) DESC, p.cip_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrphanCode
	for rows.Next() {
		var o model.OrphanCode
		if err := rows.Scan(&o.CIPCode, &o.Programs); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
