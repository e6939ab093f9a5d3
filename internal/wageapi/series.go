// Package wageapi is the client for the occupational wage time-series API.
package wageapi

import (
	"strings"
)

// DataType is the two-digit statistic suffix of a series identifier.
type DataType string

const (
	DataTypeAnnualMean   DataType = "04"
	DataTypeAnnualMedian DataType = "13"
)

const (
	seriesPrefix = "OEUS"
	// Area/industry filler between the state code and the occupation code.
	seriesFiller = "00000000000"

	// MaxSeriesPerRequest is the API's per-request series limit.
	MaxSeriesPerRequest = 50
)

// CleanSOC strips the dash from an occupation code: "47-2111" -> "472111".
func CleanSOC(soc string) string {
	return strings.ReplaceAll(strings.TrimSpace(soc), "-", "")
}

// SeriesID builds the statewide series identifier for an occupation.
func SeriesID(fips, soc string, dt DataType) string {
	return seriesPrefix + fips + seriesFiller + CleanSOC(soc) + string(dt)
}

// SeriesRef is what a series identifier stands for.
type SeriesRef struct {
	SOC      string
	DataType DataType
}

// SeriesMap correlates response series back to occupations.
type SeriesMap map[string]SeriesRef

// BuildSeries returns the series identifiers for a batch of occupation codes,
// in batch order, and the reverse map. When withMedian is set each code
// contributes its mean and median series.
func BuildSeries(fips string, socs []string, withMedian bool) ([]string, SeriesMap) {
	types := []DataType{DataTypeAnnualMean}
	if withMedian {
		types = append(types, DataTypeAnnualMedian)
	}

	ids := make([]string, 0, len(socs)*len(types))
	refs := make(SeriesMap, len(socs)*len(types))
	for _, soc := range socs {
		for _, dt := range types {
			id := SeriesID(fips, soc, dt)
			if _, dup := refs[id]; dup {
				continue
			}
			ids = append(ids, id)
			refs[id] = SeriesRef{SOC: soc, DataType: dt}
		}
	}
	return ids, refs
}

// Chunk splits codes into consecutive batches of at most size.
func Chunk(codes []string, size int) [][]string {
	if size <= 0 {
		size = len(codes)
	}
	var out [][]string
	for i := 0; i < len(codes); i += size {
		end := i + size
		if end > len(codes) {
			end = len(codes)
		}
		out = append(out, codes[i:end])
	}
	return out
}
