package model

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderOccupationTitle is stored when the wage API does not return a title.
const PlaceholderOccupationTitle = "Fetched Title"

// WageRecord is one occupation's annual wage for a region and period.
// Rows are inserted once and never updated.
type WageRecord struct {
	ID                 int       `json:"id"`
	SOCCode            string    `json:"soc_code" validate:"required,soc"`
	OccupationTitle    string    `json:"occupation_title"`
	StateAbbr          string    `json:"state_abbr" validate:"required,len=2"`
	StateFIPS          string    `json:"state_fips" validate:"required,len=2,numeric"`
	PeriodYear         int       `json:"period_year" validate:"gte=1990,lte=2100"`
	Period             string    `json:"period" validate:"required"`
	AnnualMeanSalary   *float64  `json:"annual_mean_salary,omitempty" validate:"omitempty,gt=0"`
	AnnualMedianSalary *float64  `json:"annual_median_salary,omitempty" validate:"omitempty,gt=0"`
	SeriesID           string    `json:"series_id"`
	RunID              uuid.UUID `json:"run_id"`
	CreatedAt          time.Time `json:"created_at"`
}
