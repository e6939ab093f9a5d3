package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepath/roi-ingest/internal/model"
)

// SchoolRepository handles institution data access.
type SchoolRepository struct {
	pool *pgxpool.Pool
}

// NewSchoolRepository creates a new SchoolRepository.
func NewSchoolRepository(pool *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{pool: pool}
}

// Upsert inserts a school or refreshes the display fields of the existing row
// with the same (name_key, zip). inserted is false when the row already existed.
func (r *SchoolRepository) Upsert(ctx context.Context, s *model.School) (id int, inserted bool, err error) {
	if s.NameKey == "" {
		s.NameKey = model.NormalizeNameKey(s.Name)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO schools (name, name_key, city, state, zip, website, accreditation)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		 ON CONFLICT (name_key, zip) DO UPDATE SET
		     name          = EXCLUDED.name,
		     city          = EXCLUDED.city,
		     state         = COALESCE(EXCLUDED.state, schools.state),
		     website       = EXCLUDED.website,
		     accreditation = COALESCE(EXCLUDED.accreditation, schools.accreditation),
		     updated_at    = NOW()
		 RETURNING id, (xmax = 0)`,
		s.Name, s.NameKey, s.City, s.State, s.Zip, s.Website, s.Accreditation,
	).Scan(&id, &inserted)
	if err != nil {
		if IsUniqueViolation(err) {
			existing, getErr := r.GetByIdentity(ctx, s.NameKey, s.Zip)
			if getErr != nil {
				return 0, false, getErr
			}
			return existing.ID, false, nil
		}
		return 0, false, fmt.Errorf("upsert school %q: %w", s.Name, err)
	}

	s.ID = id
	return id, inserted, nil
}

// GetByIdentity retrieves a school by its normalized name key and zip.
func (r *SchoolRepository) GetByIdentity(ctx context.Context, nameKey, zip string) (*model.School, error) {
	s := &model.School{}
	var state *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, name_key, city, state, zip, website, accreditation, created_at, updated_at
		 FROM schools WHERE name_key = $1 AND zip = $2`, nameKey, zip,
	).Scan(&s.ID, &s.Name, &s.NameKey, &s.City, &state, &s.Zip, &s.Website, &s.Accreditation, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if state != nil {
		s.State = *state
	}
	return s, nil
}
