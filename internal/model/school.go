package model

import (
	"strings"
	"time"
)

// School is an institution harvested from the catalog.
// Identity is (NameKey, Zip); the remaining fields are refreshed on every sighting.
type School struct {
	ID            int       `json:"id"`
	Name          string    `json:"name" validate:"required,max=255"`
	NameKey       string    `json:"name_key"`
	City          string    `json:"city" validate:"max=120"`
	State         string    `json:"state" validate:"omitempty,len=2,alpha"`
	Zip           string    `json:"zip" validate:"required,zip5"`
	Website       string    `json:"website" validate:"max=512"`
	Accreditation *string   `json:"accreditation,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NormalizeNameKey lower-cases a display name and collapses whitespace.
func NormalizeNameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// HarvestedSchool is one catalog record after filtering and normalization.
type HarvestedSchool struct {
	CatalogID int       `json:"catalog_id"`
	School    School    `json:"school"`
	Programs  []Program `json:"programs"`
}
