package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/catalog"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/metrics"
	"github.com/tradepath/roi-ingest/internal/model"
	"github.com/tradepath/roi-ingest/internal/retry"
	"github.com/tradepath/roi-ingest/internal/validator"
)

// PageSource fetches catalog pages.
type PageSource interface {
	FetchPage(ctx context.Context, page, perPage int) (*catalog.Page, error)
}

// EmitFunc receives each normalized school in page order.
type EmitFunc func(ctx context.Context, h model.HarvestedSchool) error

// Stop reasons reported in HarvestStats.
const (
	StopEmptyPage = "empty_page"
	StopTotal     = "total_reached"
	StopCeiling   = "page_ceiling"
)

// HarvestOptions configures a Harvester.
type HarvestOptions struct {
	Families []string
	PageSize int
	MaxPages int
	Retry    retry.Policy
}

// HarvestStats summarizes one harvest.
type HarvestStats struct {
	Pages        int
	PagesSkipped int
	Records      int
	Emitted      int
	Ignored      int
	Invalid      int
	EmitFailed   int
	StopReason   string
}

// Harvester walks the catalog page by page and emits schools that offer at
// least one program in the target families.
type Harvester struct {
	source  PageSource
	opts    HarvestOptions
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewHarvester creates a Harvester.
func NewHarvester(source PageSource, opts HarvestOptions, m *metrics.Metrics, log zerolog.Logger) *Harvester {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 500
	}
	return &Harvester{
		source:  source,
		opts:    opts,
		metrics: m,
		log:     log.With().Str("component", "harvester").Logger(),
	}
}

// Run harvests until an empty page, the page count from metadata.total, or
// the page ceiling. A page that keeps failing is skipped; a rejected
// credential or a fatal emit error ends the run.
func (h *Harvester) Run(ctx context.Context, emit EmitFunc) (HarvestStats, error) {
	var stats HarvestStats
	start := time.Now()
	defer h.metrics.ObserveStage("harvest", start)

	totalPages := -1
	for page := 0; ; page++ {
		if page >= h.opts.MaxPages {
			stats.StopReason = StopCeiling
			break
		}
		if totalPages >= 0 && page >= totalPages {
			stats.StopReason = StopTotal
			break
		}

		p, err := h.fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if etlerr.IsFatal(err) {
				return stats, err
			}
			stats.PagesSkipped++
			h.metrics.PageSkipped()
			h.log.Error().Err(err).Int("page", page).Msg("Skipping page")
			continue
		}

		stats.Pages++
		h.metrics.PageFetched()

		if len(p.Results) == 0 {
			stats.StopReason = StopEmptyPage
			break
		}
		if tp, ok := p.TotalPages(h.opts.PageSize); ok {
			totalPages = tp
		}

		for _, rec := range p.Results {
			stats.Records++
			school, ok, reason := normalizeRecord(rec, h.opts.Families)
			if !ok {
				if reason == skipNoTargetPrograms {
					stats.Ignored++
					continue
				}
				stats.Invalid++
				h.metrics.RecordSkipped("harvest", "invalid")
				h.log.Warn().
					Str("catalog_id", rec.String(catalog.FieldID)).
					Str("reason", reason).
					Msg("Skipping invalid record")
				continue
			}

			if err := emit(ctx, school); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				if etlerr.IsFatal(err) {
					return stats, err
				}
				stats.EmitFailed++
				h.log.Warn().Err(err).Str("school", school.School.Name).Msg("Failed to write school")
				continue
			}
			stats.Emitted++
		}

		h.log.Info().
			Int("page", page).
			Int("total_pages", totalPages).
			Int("emitted", stats.Emitted).
			Msg("Page processed")
	}

	h.log.Info().
		Int("pages", stats.Pages).
		Int("pages_skipped", stats.PagesSkipped).
		Int("emitted", stats.Emitted).
		Str("stop_reason", stats.StopReason).
		Msg("Harvest finished")

	return stats, nil
}

func (h *Harvester) fetch(ctx context.Context, page int) (*catalog.Page, error) {
	var p *catalog.Page
	err := h.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		p, err = h.source.FetchPage(ctx, page, h.opts.PageSize)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		h.log.Warn().Err(err).
			Int("page", page).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Page fetch failed, retrying")
	})
	return p, err
}

const skipNoTargetPrograms = "no target programs"

// durationByCredential maps catalog credential levels to typical program length.
var durationByCredential = map[int]int{
	1: 12, // undergraduate certificate
	2: 24, // associate degree
	3: 48, // bachelor's degree
}

// normalizeRecord turns a catalog record into a HarvestedSchool. ok is false
// when the record has no program in families or fails validation; reason
// says which.
func normalizeRecord(rec catalog.Record, families []string) (model.HarvestedSchool, bool, string) {
	var programs []model.Program
	for _, pc := range rec.Programs() {
		if !matchesFamily(pc.Code, families) {
			continue
		}
		p := model.Program{
			CIPCode: pc.Code,
			Name:    pc.Title,
		}
		if p.Name == "" {
			p.Name = "CIP " + pc.Code
		}
		if months, ok := durationByCredential[pc.CredentialLevel]; ok {
			p.DurationMonths = &months
		}
		programs = append(programs, p)
	}
	if len(programs) == 0 {
		return model.HarvestedSchool{}, false, skipNoTargetPrograms
	}

	school := model.School{
		Name:    strings.TrimSpace(rec.String(catalog.FieldName)),
		City:    rec.String(catalog.FieldCity),
		State:   strings.ToUpper(rec.String(catalog.FieldState)),
		Zip:     normalizeZip(rec.String(catalog.FieldZip)),
		Website: rec.String(catalog.FieldWebsite),
	}
	school.NameKey = model.NormalizeNameKey(school.Name)
	if acc := rec.String(catalog.FieldAccreditation); acc != "" {
		school.Accreditation = &acc
	}

	if fields := validator.Struct(school); fields != nil {
		return model.HarvestedSchool{}, false, validator.Format(fields)
	}

	id, _ := rec.Int(catalog.FieldID)
	return model.HarvestedSchool{CatalogID: id, School: school, Programs: programs}, true, ""
}

// matchesFamily reports whether code starts with one of the family prefixes.
// An empty family list matches everything.
func matchesFamily(code string, families []string) bool {
	if len(families) == 0 {
		return true
	}
	for _, f := range families {
		if strings.HasPrefix(code, f) {
			return true
		}
	}
	return false
}

// normalizeZip reduces a ZIP or ZIP+4 to five digits. Numeric zips that lost
// their leading zeros are padded; an absent zip becomes "00000".
func normalizeZip(raw string) string {
	z := strings.TrimSpace(raw)
	if z == "" {
		return "00000"
	}
	if i := strings.IndexByte(z, '-'); i >= 0 {
		z = z[:i]
	}
	if len(z) == 9 {
		z = z[:5]
	}
	if len(z) < 5 {
		z = strings.Repeat("0", 5-len(z)) + z
	}
	return z
}
