package catalog

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Flat dotted field names requested from the catalog.
const (
	FieldID            = "id"
	FieldName          = "school.name"
	FieldCity          = "school.city"
	FieldState         = "school.state"
	FieldZip           = "school.zip"
	FieldAccreditation = "school.accreditor"
	FieldWebsite       = "school.school_url"
	FieldPrograms      = "latest.programs.cip_4_digit"
)

// DefaultFields is the projection sent with every page request.
var DefaultFields = []string{
	FieldID, FieldName, FieldPrograms, FieldCity, FieldState, FieldZip, FieldAccreditation, FieldWebsite,
}

// Metadata is the paging block of a catalog response.
type Metadata struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Page is one decoded catalog response.
type Page struct {
	Metadata *Metadata `json:"metadata"`
	Results  []Record  `json:"results"`
}

// Record is one result row keyed by flat dotted field names.
type Record map[string]json.RawMessage

// ProgramCode is one instructional-code entry of a record.
type ProgramCode struct {
	Code            string
	Title           string
	CredentialLevel int
}

// String returns a field as text. Numbers are rendered without exponent;
// null and missing fields give "".
func (r Record) String(field string) string {
	raw, ok := r[field]
	if !ok {
		return ""
	}
	return flexString(raw)
}

// Int returns a numeric field.
func (r Record) Int(field string) (int, bool) {
	s := r.String(field)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Programs returns the record's instructional codes, de-duplicated and sorted.
// The field may be an array of objects carrying "code" or an object keyed by code.
func (r Record) Programs() []ProgramCode {
	raw, ok := r[FieldPrograms]
	if !ok {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var codes []ProgramCode
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		for _, item := range items {
			if pc, ok := parseProgramObject("", item); ok {
				codes = append(codes, pc)
			}
		}
	case '{':
		var byCode map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byCode); err != nil {
			return nil
		}
		for code, meta := range byCode {
			if pc, ok := parseProgramObject(code, meta); ok {
				codes = append(codes, pc)
			}
		}
	default:
		return nil
	}

	return dedupeCodes(codes)
}

type programObject struct {
	Code       json.RawMessage `json:"code"`
	Title      string          `json:"title"`
	Credential *struct {
		Level json.RawMessage `json:"level"`
	} `json:"credential"`
}

func parseProgramObject(code string, raw json.RawMessage) (ProgramCode, bool) {
	pc := ProgramCode{Code: strings.TrimSpace(code)}

	var obj programObject
	if len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
		if err := json.Unmarshal(raw, &obj); err == nil {
			if pc.Code == "" {
				pc.Code = strings.TrimSpace(flexString(obj.Code))
			}
			pc.Title = strings.TrimSpace(obj.Title)
			if obj.Credential != nil {
				if lvl, err := strconv.Atoi(flexString(obj.Credential.Level)); err == nil {
					pc.CredentialLevel = lvl
				}
			}
		}
	}

	return pc, pc.Code != ""
}

func dedupeCodes(codes []ProgramCode) []ProgramCode {
	seen := make(map[string]int, len(codes))
	out := make([]ProgramCode, 0, len(codes))
	for _, c := range codes {
		if i, dup := seen[c.Code]; dup {
			// Keep the richest entry for a repeated code.
			if out[i].Title == "" {
				out[i].Title = c.Title
			}
			if out[i].CredentialLevel == 0 {
				out[i].CredentialLevel = c.CredentialLevel
			}
			continue
		}
		seen[c.Code] = len(out)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// flexString decodes a JSON string or number into text.
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
