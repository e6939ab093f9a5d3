package service

import (
	"context"
	"fmt"

	"github.com/antzucaro/matchr"
	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/model"
	"github.com/tradepath/roi-ingest/internal/repository"
)

// ReportStore runs table-level integrity queries.
type ReportStore interface {
	CountRows(ctx context.Context) ([]model.TableCount, error)
	SampleProgramCodes(ctx context.Context, limit int) ([]string, error)
	OrphanProgramCodes(ctx context.Context) ([]model.OrphanCode, error)
}

// LinkageStore resolves crosswalk links.
type LinkageStore interface {
	ListCIPCodes(ctx context.Context) ([]string, error)
	FindByCIP(ctx context.Context, cip string) ([]model.CrosswalkEntry, error)
}

// WageCounter counts stored wage rows.
type WageCounter interface {
	CountBySOC(ctx context.Context, soc string) (int64, error)
}

var (
	_ ReportStore  = (*repository.ReportRepository)(nil)
	_ LinkageStore = (*repository.CrosswalkRepository)(nil)
	_ WageCounter  = (*repository.WageRepository)(nil)
)

// minSuggestionSimilarity is the Jaro-Winkler score below which no
// suggestion is offered.
const minSuggestionSimilarity = 0.8

// Diagnosis is the result of a linkage check.
type Diagnosis struct {
	Traces  []model.LinkageTrace
	Orphans []model.OrphanCode
}

// ReportService reads pipeline tables for reporting.
type ReportService struct {
	reports ReportStore
	links   LinkageStore
	wages   WageCounter
	log     zerolog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(reports ReportStore, links LinkageStore, wages WageCounter, log zerolog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		links:   links,
		wages:   wages,
		log:     log.With().Str("component", "report").Logger(),
	}
}

// Counts returns the row count of every pipeline table.
func (s *ReportService) Counts(ctx context.Context) ([]model.TableCount, error) {
	return s.reports.CountRows(ctx)
}

// Diagnose traces up to sample program codes through the crosswalk to wage
// rows and lists every program code without a crosswalk entry, each with the
// closest crosswalk code when one is similar enough.
func (s *ReportService) Diagnose(ctx context.Context, sample int) (*Diagnosis, error) {
	codes, err := s.reports.SampleProgramCodes(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("sample program codes: %w", err)
	}

	d := &Diagnosis{}
	for _, cip := range codes {
		entries, err := s.links.FindByCIP(ctx, cip)
		if err != nil {
			return nil, fmt.Errorf("find mappings for %s: %w", cip, err)
		}
		trace := model.LinkageTrace{CIPCode: cip}
		for _, e := range entries {
			n, err := s.wages.CountBySOC(ctx, e.SOCCode)
			if err != nil {
				return nil, fmt.Errorf("count wages for %s: %w", e.SOCCode, err)
			}
			trace.SOCCodes = append(trace.SOCCodes, e.SOCCode)
			trace.WageCounts = append(trace.WageCounts, n)
		}
		d.Traces = append(d.Traces, trace)
	}

	orphans, err := s.reports.OrphanProgramCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("orphan program codes: %w", err)
	}
	known, err := s.links.ListCIPCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list crosswalk codes: %w", err)
	}
	for i := range orphans {
		orphans[i].Suggestion, orphans[i].Similarity = closestCode(orphans[i].CIPCode, known)
	}
	d.Orphans = orphans

	s.log.Info().
		Int("traced", len(d.Traces)).
		Int("orphans", len(d.Orphans)).
		Msg("Linkage diagnosed")
	return d, nil
}

// closestCode returns the candidate most similar to code, or "" when none
// reaches minSuggestionSimilarity.
func closestCode(code string, candidates []string) (string, float64) {
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := matchr.JaroWinkler(code, c, false)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < minSuggestionSimilarity {
		return "", 0
	}
	return best, bestScore
}
