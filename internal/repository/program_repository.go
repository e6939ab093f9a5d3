package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepath/roi-ingest/internal/model"
)

// ProgramRepository handles program data access.
type ProgramRepository struct {
	pool *pgxpool.Pool
}

// NewProgramRepository creates a new ProgramRepository.
func NewProgramRepository(pool *pgxpool.Pool) *ProgramRepository {
	return &ProgramRepository{pool: pool}
}

// InsertIfAbsent inserts a program unless (school_id, cip_code) already exists.
// The first write wins; inserted is false for an existing row.
func (r *ProgramRepository) InsertIfAbsent(ctx context.Context, p *model.Program) (inserted bool, err error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO programs (school_id, cip_code, program_name, tuition_estimate, duration_months)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (school_id, cip_code) DO NOTHING`,
		p.SchoolID, p.CIPCode, p.Name, p.TuitionEstimate, p.DurationMonths,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert program %s for school %d: %w", p.CIPCode, p.SchoolID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListBySchool retrieves all programs of a school ordered by code.
func (r *ProgramRepository) ListBySchool(ctx context.Context, schoolID int) ([]model.Program, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, school_id, cip_code, program_name, tuition_estimate::float8, duration_months, created_at
		 FROM programs WHERE school_id = $1 ORDER BY cip_code`, schoolID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var programs []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.SchoolID, &p.CIPCode, &p.Name, &p.TuitionEstimate, &p.DurationMonths, &p.CreatedAt); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}
