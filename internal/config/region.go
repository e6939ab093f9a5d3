package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tradepath/roi-ingest/internal/etlerr"
)

// Region is a US state (or DC) with its two-digit FIPS code.
type Region struct {
	Abbr string
	FIPS string
}

var stateFIPS = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

// LookupRegion resolves a state abbreviation (any case) to its Region.
// An empty or unknown abbreviation is a config error: there is no default region.
func LookupRegion(abbr string) (Region, error) {
	key := strings.ToUpper(strings.TrimSpace(abbr))
	if key == "" {
		return Region{}, etlerr.New(etlerr.KindConfig, "region", "a state is required (e.g. --state=TX)", nil)
	}
	fips, ok := stateFIPS[key]
	if !ok {
		return Region{}, etlerr.New(etlerr.KindConfig, "region",
			fmt.Sprintf("unknown state %q", abbr), nil)
	}
	return Region{Abbr: key, FIPS: fips}, nil
}

// AllRegions returns every known region ordered by abbreviation.
func AllRegions() []Region {
	out := make([]Region, 0, len(stateFIPS))
	for abbr, fips := range stateFIPS {
		out = append(out, Region{Abbr: abbr, FIPS: fips})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbr < out[j].Abbr })
	return out
}
