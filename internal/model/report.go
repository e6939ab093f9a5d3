package model

// TableCount is a row count for one pipeline table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// LinkageTrace follows one program code through the crosswalk to wage rows.
type LinkageTrace struct {
	CIPCode    string   `json:"cip_code"`
	SOCCodes   []string `json:"soc_codes"`
	WageCounts []int64  `json:"wage_counts"`
}

// OrphanCode is a program code with no crosswalk entry.
type OrphanCode struct {
	CIPCode    string  `json:"cip_code"`
	Programs   int64   `json:"programs"`
	Suggestion string  `json:"suggestion,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}
