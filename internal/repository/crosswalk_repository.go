package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepath/roi-ingest/internal/model"
)

// CrosswalkRepository handles cip_soc_matrix data access.
type CrosswalkRepository struct {
	pool *pgxpool.Pool
}

// NewCrosswalkRepository creates a new CrosswalkRepository.
func NewCrosswalkRepository(pool *pgxpool.Pool) *CrosswalkRepository {
	return &CrosswalkRepository{pool: pool}
}

const crosswalkConflict = `
	ON CONFLICT (cip_code, soc_code) DO UPDATE SET
	    confidence_score = EXCLUDED.confidence_score,
	    soc_title        = COALESCE(EXCLUDED.soc_title, cip_soc_matrix.soc_title),
	    source           = EXCLUDED.source,
	    updated_at       = NOW()`

// Upsert writes a single mapping.
func (r *CrosswalkRepository) Upsert(ctx context.Context, e *model.CrosswalkEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cip_soc_matrix (cip_code, soc_code, confidence_score, soc_title, source)
		 VALUES ($1, $2, $3, $4, $5)`+crosswalkConflict,
		e.CIPCode, e.SOCCode, e.Confidence, e.Title, string(e.Source),
	)
	if err != nil {
		return fmt.Errorf("upsert mapping %s -> %s: %w", e.CIPCode, e.SOCCode, err)
	}
	return nil
}

// BulkUpsert writes a batch in one statement. The batch must not repeat a
// (cip_code, soc_code) pair.
func (r *CrosswalkRepository) BulkUpsert(ctx context.Context, entries []model.CrosswalkEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	n := len(entries)
	cips := make([]string, 0, n)
	socs := make([]string, 0, n)
	scores := make([]int32, 0, n)
	titles := make([]*string, 0, n)
	sources := make([]string, 0, n)

	for _, e := range entries {
		cips = append(cips, e.CIPCode)
		socs = append(socs, e.SOCCode)
		scores = append(scores, int32(e.Confidence))
		titles = append(titles, e.Title)
		sources = append(sources, string(e.Source))
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO cip_soc_matrix (cip_code, soc_code, confidence_score, soc_title, source)
		SELECT u.cip_code, u.soc_code, u.confidence_score, u.soc_title, u.source
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::int[],
			$4::text[],
			$5::text[]
		) AS u (cip_code, soc_code, confidence_score, soc_title, source)`+crosswalkConflict,
		cips, socs, scores, titles, sources,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DistinctSOCCodes returns every occupation code in the matrix, sorted.
func (r *CrosswalkRepository) DistinctSOCCodes(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT soc_code FROM cip_soc_matrix ORDER BY soc_code`)
}

// ListCIPCodes returns every instructional code in the matrix, sorted.
func (r *CrosswalkRepository) ListCIPCodes(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT cip_code FROM cip_soc_matrix ORDER BY cip_code`)
}

// TitlesBySOC returns the known occupation title per code.
func (r *CrosswalkRepository) TitlesBySOC(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT soc_code, MAX(soc_title) FROM cip_soc_matrix
		 WHERE soc_title IS NOT NULL AND soc_title <> ''
		 GROUP BY soc_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make(map[string]string)
	for rows.Next() {
		var soc, title string
		if err := rows.Scan(&soc, &title); err != nil {
			return nil, err
		}
		titles[soc] = title
	}
	return titles, rows.Err()
}

// FindByCIP returns the mappings of one instructional code.
func (r *CrosswalkRepository) FindByCIP(ctx context.Context, cip string) ([]model.CrosswalkEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cip_code, soc_code, confidence_score, soc_title, source
		 FROM cip_soc_matrix WHERE cip_code = $1 ORDER BY soc_code`, cip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.CrosswalkEntry
	for rows.Next() {
		var e model.CrosswalkEntry
		var source string
		if err := rows.Scan(&e.CIPCode, &e.SOCCode, &e.Confidence, &e.Title, &source); err != nil {
			return nil, err
		}
		e.Source = model.CrosswalkSource(source)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *CrosswalkRepository) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
