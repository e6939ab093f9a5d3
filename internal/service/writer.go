package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/metrics"
	"github.com/tradepath/roi-ingest/internal/model"
	"github.com/tradepath/roi-ingest/internal/validator"
)

// WriteStats are the running counters of one Writer.
type WriteStats struct {
	SchoolsInserted  int
	SchoolsUpdated   int
	SchoolsFailed    int
	ProgramsInserted int
	ProgramsExisting int
	ProgramsFailed   int
	MappingsWritten  int
	MappingsFailed   int
	WagesInserted    int
	WagesExisting    int
	WagesFailed      int
	Invalid          int
}

// Writer is the single write path for every pipeline table. Each write is an
// idempotent upsert backed by a unique constraint.
type Writer struct {
	stores  Stores
	metrics *metrics.Metrics
	log     zerolog.Logger
	stats   WriteStats
}

// NewWriter creates a Writer for one run.
func NewWriter(stores Stores, m *metrics.Metrics, log zerolog.Logger) *Writer {
	return &Writer{
		stores:  stores,
		metrics: m,
		log:     log.With().Str("component", "writer").Logger(),
	}
}

// Stats returns a snapshot of the counters.
func (w *Writer) Stats() WriteStats { return w.stats }

// UpsertInstitution inserts a school or refreshes its display fields.
func (w *Writer) UpsertInstitution(ctx context.Context, s *model.School) (id int, inserted bool, err error) {
	s.NameKey = model.NormalizeNameKey(s.Name)
	if fields := validator.Struct(s); fields != nil {
		w.stats.Invalid++
		w.metrics.RecordSkipped("schools", "invalid")
		return 0, false, etlerr.New(etlerr.KindValidation, "school "+s.Name, validator.Format(fields), nil)
	}

	id, inserted, err = w.stores.Schools.Upsert(ctx, s)
	if err != nil {
		if ctx.Err() == nil {
			w.stats.SchoolsFailed++
		}
		return 0, false, err
	}

	if inserted {
		w.stats.SchoolsInserted++
		w.metrics.RowWritten("schools", "inserted", 1)
	} else {
		w.stats.SchoolsUpdated++
		w.metrics.RowWritten("schools", "updated", 1)
	}
	return id, inserted, nil
}

// UpsertProgram inserts a program for schoolID unless it already exists.
func (w *Writer) UpsertProgram(ctx context.Context, schoolID int, p *model.Program) (inserted bool, err error) {
	p.SchoolID = schoolID
	if fields := validator.Struct(p); fields != nil {
		w.stats.Invalid++
		w.metrics.RecordSkipped("programs", "invalid")
		return false, etlerr.New(etlerr.KindValidation, "program "+p.CIPCode, validator.Format(fields), nil)
	}

	inserted, err = w.stores.Programs.InsertIfAbsent(ctx, p)
	if err != nil {
		if ctx.Err() == nil {
			w.stats.ProgramsFailed++
		}
		return false, err
	}

	if inserted {
		w.stats.ProgramsInserted++
		w.metrics.RowWritten("programs", "inserted", 1)
	} else {
		w.stats.ProgramsExisting++
		w.metrics.RowWritten("programs", "existing", 1)
	}
	return inserted, nil
}

// WriteHarvested persists one harvested school and its programs. An invalid
// program is skipped with a warning; the school stays written.
func (w *Writer) WriteHarvested(ctx context.Context, h model.HarvestedSchool) error {
	school := h.School
	id, _, err := w.UpsertInstitution(ctx, &school)
	if err != nil {
		return err
	}

	for i := range h.Programs {
		p := h.Programs[i]
		if _, err := w.UpsertProgram(ctx, id, &p); err != nil {
			if etlerr.IsKind(err, etlerr.KindValidation) {
				w.log.Warn().Err(err).Int("school_id", id).Msg("Skipping invalid program")
				continue
			}
			return err
		}
	}
	return nil
}

// UpsertCrosswalk writes a batch of mappings in one statement, falling back
// to row-by-row upserts when the bulk statement fails. Repeated pairs in the
// batch collapse to the last one. Returns the number of mappings written.
func (w *Writer) UpsertCrosswalk(ctx context.Context, batch []model.CrosswalkEntry) (int, error) {
	entries := w.validMappings(batch)
	if len(entries) == 0 {
		return 0, nil
	}

	_, err := w.stores.Crosswalk.BulkUpsert(ctx, entries)
	if err == nil {
		w.stats.MappingsWritten += len(entries)
		w.metrics.RowWritten("cip_soc_matrix", "upserted", len(entries))
		return len(entries), nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	w.log.Warn().Err(err).Int("count", len(entries)).Msg("Bulk upsert failed, attempting row-by-row recovery")

	written := 0
	var lastErr error
	for i := range entries {
		if err := w.stores.Crosswalk.Upsert(ctx, &entries[i]); err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			lastErr = err
			w.stats.MappingsFailed++
			w.log.Error().Err(err).
				Str("cip_code", entries[i].CIPCode).
				Str("soc_code", entries[i].SOCCode).
				Msg("Mapping upsert failed")
			continue
		}
		written++
	}

	w.stats.MappingsWritten += written
	w.metrics.RowWritten("cip_soc_matrix", "upserted", written)

	if written == 0 && lastErr != nil {
		return 0, fmt.Errorf("crosswalk batch of %d failed: %w", len(entries), lastErr)
	}
	return written, nil
}

func (w *Writer) validMappings(batch []model.CrosswalkEntry) []model.CrosswalkEntry {
	index := make(map[string]int, len(batch))
	out := make([]model.CrosswalkEntry, 0, len(batch))
	for _, e := range batch {
		if fields := validator.Struct(e); fields != nil {
			w.stats.Invalid++
			w.metrics.RecordSkipped("cip_soc_matrix", "invalid")
			w.log.Warn().
				Str("cip_code", e.CIPCode).
				Str("soc_code", e.SOCCode).
				Str("reason", validator.Format(fields)).
				Msg("Skipping invalid mapping")
			continue
		}
		if i, dup := index[e.Key()]; dup {
			out[i] = e
			continue
		}
		index[e.Key()] = len(out)
		out = append(out, e)
	}
	return out
}

// InsertWages inserts wage records; rows for an already-stored period are
// left untouched. Returns the number of new rows.
func (w *Writer) InsertWages(ctx context.Context, records []model.WageRecord) (int, error) {
	valid := make([]model.WageRecord, 0, len(records))
	for _, r := range records {
		if fields := validator.Struct(r); fields != nil {
			w.stats.Invalid++
			w.metrics.RecordSkipped("bls_salary_data", "invalid")
			w.log.Warn().Str("soc_code", r.SOCCode).Str("reason", validator.Format(fields)).Msg("Skipping invalid wage record")
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	n, err := w.stores.Wages.InsertBatch(ctx, valid)
	if err != nil {
		if ctx.Err() == nil {
			w.stats.WagesFailed += len(valid) - int(n)
		}
		return int(n), err
	}

	inserted := int(n)
	w.stats.WagesInserted += inserted
	w.stats.WagesExisting += len(valid) - inserted
	w.metrics.RowWritten("bls_salary_data", "inserted", inserted)
	w.metrics.RowWritten("bls_salary_data", "existing", len(valid)-inserted)
	return inserted, nil
}
