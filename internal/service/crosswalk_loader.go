package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/metrics"
	"github.com/tradepath/roi-ingest/internal/model"
)

// CrosswalkWriter persists crosswalk batches.
type CrosswalkWriter interface {
	UpsertCrosswalk(ctx context.Context, batch []model.CrosswalkEntry) (int, error)
}

// noMatchSOC marks reference rows whose program has no occupation.
const noMatchSOC = "99-9999"

// CrosswalkStats summarizes one crosswalk load.
type CrosswalkStats struct {
	Rows        int
	Written     int
	Duplicates  int
	Skipped     int
	Flushes     int
	CIPColumn   string
	SOCColumn   string
	TitleColumn string
}

// CrosswalkLoader loads curated and reference CIP→SOC mappings.
type CrosswalkLoader struct {
	writer    CrosswalkWriter
	flushSize int
	http      *resty.Client
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewCrosswalkLoader creates a CrosswalkLoader.
func NewCrosswalkLoader(writer CrosswalkWriter, flushSize int, timeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *CrosswalkLoader {
	if flushSize <= 0 {
		flushSize = 1000
	}
	client := resty.New()
	client.SetHeader("user-agent", "roi-ingest/1.0")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &CrosswalkLoader{
		writer:    writer,
		flushSize: flushSize,
		http:      client,
		metrics:   m,
		log:       log.With().Str("component", "crosswalk_loader").Logger(),
	}
}

// LoadCurated writes the curated mappings with full confidence.
func (l *CrosswalkLoader) LoadCurated(ctx context.Context, mappings []model.CuratedMapping) (CrosswalkStats, error) {
	start := time.Now()
	defer l.metrics.ObserveStage("crosswalk_curated", start)

	b := l.newBuffer()
	for _, m := range mappings {
		b.stats.Rows++
		e := model.CrosswalkEntry{
			CIPCode:    cleanCell(m.CIP),
			SOCCode:    cleanCell(m.SOC),
			Confidence: 100,
			Source:     model.SourceCurated,
		}
		if t := strings.TrimSpace(m.Title); t != "" {
			e.Title = &t
		}
		if err := b.add(ctx, e); err != nil {
			return b.stats, err
		}
	}
	if err := b.flush(ctx); err != nil {
		return b.stats, err
	}

	l.log.Info().
		Int("mappings", b.stats.Written).
		Int("duplicates", b.stats.Duplicates).
		Msg("Curated crosswalk loaded")
	return b.stats, nil
}

// LoadFile loads a reference CSV from a local path or an http(s) URL.
// A missing file or a 404 is a NotFound error.
func (l *CrosswalkLoader) LoadFile(ctx context.Context, source string) (CrosswalkStats, error) {
	r, err := l.open(ctx, source)
	if err != nil {
		return CrosswalkStats{}, err
	}
	defer r.Close()

	return l.LoadReader(ctx, r, source)
}

func (l *CrosswalkLoader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		res, err := l.http.R().SetContext(ctx).Get(source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, etlerr.New(etlerr.KindTransient, source, "download failed", err)
		}
		switch status := res.StatusCode(); {
		case status == http.StatusNotFound:
			return nil, etlerr.New(etlerr.KindNotFound, source, "reference file not found (HTTP 404)", nil)
		case status < 200 || status >= 300:
			return nil, etlerr.New(etlerr.KindUpstream, source, fmt.Sprintf("HTTP %d", status), nil)
		}
		return io.NopCloser(bytes.NewReader(res.Body())), nil
	}

	f, err := os.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, etlerr.New(etlerr.KindNotFound, source, "reference file not found", err)
		}
		return nil, etlerr.New(etlerr.KindConfig, source, "cannot open reference file", err)
	}
	return f, nil
}

// LoadReader loads a reference CSV from r. name labels log lines and errors.
func (l *CrosswalkLoader) LoadReader(ctx context.Context, r io.Reader, name string) (CrosswalkStats, error) {
	start := time.Now()
	defer l.metrics.ObserveStage("crosswalk_reference", start)

	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return CrosswalkStats{}, etlerr.New(etlerr.KindValidation, name, "reference file is empty", nil)
		}
		return CrosswalkStats{}, etlerr.New(etlerr.KindValidation, name, "cannot read header", err)
	}

	cols, err := ResolveCrosswalkColumns(header)
	if err != nil {
		return CrosswalkStats{}, etlerr.New(etlerr.KindValidation, name, err.Error(), nil)
	}

	b := l.newBuffer()
	b.stats.CIPColumn = header[cols.CIP]
	b.stats.SOCColumn = header[cols.SOC]
	if cols.Title >= 0 {
		b.stats.TitleColumn = header[cols.Title]
	}

	l.log.Info().
		Str("source", name).
		Str("cip_column", b.stats.CIPColumn).
		Str("soc_column", b.stats.SOCColumn).
		Str("title_column", b.stats.TitleColumn).
		Msg("Crosswalk columns resolved")

	need := cols.CIP
	if cols.SOC > need {
		need = cols.SOC
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return b.stats, etlerr.New(etlerr.KindTransient, name, "read reference file", err)
			}
			b.skip("unreadable")
			l.log.Warn().Err(err).Int("line", line).Msg("Skipping unreadable row")
			continue
		}
		b.stats.Rows++

		if len(row) <= need {
			b.skip("short_row")
			l.log.Warn().Int("line", line).Int("cells", len(row)).Msg("Skipping short row")
			continue
		}

		cip, soc := cleanCell(row[cols.CIP]), cleanCell(row[cols.SOC])
		if cip == "" || soc == "" {
			b.skip("empty_cell")
			l.log.Warn().Int("line", line).Str("cip_code", cip).Str("soc_code", soc).Msg("Skipping row with empty code")
			continue
		}
		if soc == noMatchSOC {
			b.skip("no_match")
			l.log.Debug().Int("line", line).Str("cip_code", cip).Msg("Skipping row without an occupation match")
			continue
		}

		e := model.CrosswalkEntry{
			CIPCode:    cip,
			SOCCode:    soc,
			Confidence: 100,
			Source:     model.SourceReference,
		}
		if cols.Title >= 0 && cols.Title < len(row) {
			if t := cleanCell(row[cols.Title]); t != "" {
				e.Title = &t
			}
		}

		if err := b.add(ctx, e); err != nil {
			return b.stats, err
		}
	}

	if err := b.flush(ctx); err != nil {
		return b.stats, err
	}

	l.log.Info().
		Str("source", name).
		Int("rows", b.stats.Rows).
		Int("written", b.stats.Written).
		Int("duplicates", b.stats.Duplicates).
		Int("skipped", b.stats.Skipped).
		Msg("Reference crosswalk loaded")
	return b.stats, nil
}

// crosswalkBuffer de-duplicates entries and flushes them in fixed-size batches.
type crosswalkBuffer struct {
	l       *CrosswalkLoader
	seen    map[string]struct{}
	pending []model.CrosswalkEntry
	stats   CrosswalkStats
}

func (l *CrosswalkLoader) newBuffer() *crosswalkBuffer {
	return &crosswalkBuffer{
		l:       l,
		seen:    make(map[string]struct{}),
		pending: make([]model.CrosswalkEntry, 0, l.flushSize),
	}
}

func (b *crosswalkBuffer) skip(reason string) {
	b.stats.Skipped++
	b.l.metrics.RecordSkipped("crosswalk", reason)
}

func (b *crosswalkBuffer) add(ctx context.Context, e model.CrosswalkEntry) error {
	if _, dup := b.seen[e.Key()]; dup {
		b.stats.Duplicates++
		return nil
	}
	b.seen[e.Key()] = struct{}{}
	b.pending = append(b.pending, e)

	if len(b.pending) >= b.l.flushSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *crosswalkBuffer) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	n, err := b.l.writer.UpsertCrosswalk(ctx, b.pending)
	b.stats.Written += n
	b.stats.Flushes++
	if err != nil {
		return err
	}
	b.l.log.Debug().Int("batch", len(b.pending)).Int("written", n).Msg("Crosswalk batch flushed")
	b.pending = b.pending[:0]
	return nil
}

// cleanCell strips spreadsheet artifacts: '=' formula prefixes, wrapping
// quotes and surrounding whitespace.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "=", "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// CrosswalkColumns are the resolved header indexes. Title is -1 when absent.
type CrosswalkColumns struct {
	CIP   int
	SOC   int
	Title int
}

// columnRule matches a header by exact name first, then by keyword + "code".
type columnRule struct {
	exact   []string
	keyword string
	suffix  string
}

var (
	cipColumnRule = columnRule{
		exact:   []string{"cip2020code", "cipcode", "cip_code", "cip code", "cip"},
		keyword: "cip",
		suffix:  "code",
	}
	socColumnRule = columnRule{
		exact:   []string{"soc2018code", "soccode", "soc_code", "soc code", "soc"},
		keyword: "soc",
		suffix:  "code",
	}
	titleColumnRule = columnRule{
		exact:   []string{"soc2018title", "soctitle", "soc_title", "soc title"},
		keyword: "soc",
		suffix:  "title",
	}
)

func (r columnRule) resolve(headers []string, taken map[int]bool) int {
	for _, want := range r.exact {
		for i, h := range headers {
			if !taken[i] && h == want {
				return i
			}
		}
	}
	for i, h := range headers {
		if !taken[i] && strings.Contains(h, r.keyword) && strings.Contains(h, r.suffix) {
			return i
		}
	}
	return -1
}

// ResolveCrosswalkColumns finds the instructional, occupation and optional
// title columns of a reference header. Matching is case-insensitive.
func ResolveCrosswalkColumns(header []string) (CrosswalkColumns, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(cleanCell(strings.TrimPrefix(h, "\ufeff")))
	}

	taken := make(map[int]bool, 3)
	cols := CrosswalkColumns{CIP: -1, SOC: -1, Title: -1}

	if cols.CIP = cipColumnRule.resolve(norm, taken); cols.CIP >= 0 {
		taken[cols.CIP] = true
	}
	if cols.SOC = socColumnRule.resolve(norm, taken); cols.SOC >= 0 {
		taken[cols.SOC] = true
	}
	cols.Title = titleColumnRule.resolve(norm, taken)

	switch {
	case cols.CIP < 0 && cols.SOC < 0:
		return cols, fmt.Errorf("no instructional or occupation code column in header %q", header)
	case cols.CIP < 0:
		return cols, fmt.Errorf("no instructional code column in header %q", header)
	case cols.SOC < 0:
		return cols, fmt.Errorf("no occupation code column in header %q", header)
	}
	return cols, nil
}
