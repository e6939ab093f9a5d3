package model

// CrosswalkSource tags where a mapping came from.
type CrosswalkSource string

const (
	SourceCurated   CrosswalkSource = "curated"
	SourceReference CrosswalkSource = "reference"
)

// CrosswalkEntry links an instructional code to an occupation code.
type CrosswalkEntry struct {
	CIPCode    string          `json:"cip_code" validate:"required,max=10"`
	SOCCode    string          `json:"soc_code" validate:"required,soc"`
	Confidence int             `json:"confidence_score" validate:"gte=0,lte=100"`
	Title      *string         `json:"soc_title,omitempty"`
	Source     CrosswalkSource `json:"source" validate:"required,oneof=curated reference"`
}

// Key is the identity used for in-memory de-duplication.
func (e CrosswalkEntry) Key() string {
	return e.CIPCode + "|" + e.SOCCode
}

// CuratedMapping is one hand-maintained mapping as stored in a curated file.
type CuratedMapping struct {
	CIP   string `json:"cip"`
	SOC   string `json:"soc"`
	Title string `json:"title"`
}
