package model

import "time"

// Program is an offering of a School identified by its instructional code.
type Program struct {
	ID              int       `json:"id"`
	SchoolID        int       `json:"school_id"`
	CIPCode         string    `json:"cip_code" validate:"required,max=10"`
	Name            string    `json:"program_name" validate:"required,max=255"`
	TuitionEstimate *float64  `json:"tuition_estimate,omitempty" validate:"omitempty,gte=0"`
	DurationMonths  *int      `json:"duration_months,omitempty" validate:"omitempty,gt=0"`
	CreatedAt       time.Time `json:"created_at"`
}
