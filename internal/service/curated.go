package service

import (
	"errors"
	"os"

	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/model"
)

// DefaultCuratedMappings are hand-checked links for the trade, repair,
// precision-production, IT, cosmetology and health families. Program codes
// appear in 2-digit, 4-digit and dotted 6-digit form so catalog codes and
// reference codes both resolve.
func DefaultCuratedMappings() []model.CuratedMapping {
	return []model.CuratedMapping{
		// Construction trades
		{CIP: "46", SOC: "47-2061", Title: "Construction Laborers"},
		{CIP: "46.0302", SOC: "47-2111", Title: "Electricians"},
		{CIP: "46.0302", SOC: "47-3013", Title: "Helpers--Electricians"},
		{CIP: "46.0503", SOC: "47-2152", Title: "Plumbers, Pipefitters, and Steamfitters"},
		{CIP: "46.0201", SOC: "47-2031", Title: "Carpenters"},

		// Mechanic and repair
		{CIP: "47", SOC: "49-9071", Title: "Maintenance and Repair Workers, General"},
		{CIP: "47.0201", SOC: "49-9021", Title: "Heating, Air Conditioning, and Refrigeration Mechanics and Installers"},
		{CIP: "47.0604", SOC: "49-3023", Title: "Automotive Service Technicians and Mechanics"},
		{CIP: "47.0605", SOC: "49-3031", Title: "Bus and Truck Mechanics and Diesel Engine Specialists"},

		// Precision production
		{CIP: "48", SOC: "51-4121", Title: "Welders, Cutters, Solderers, and Brazers"},
		{CIP: "48.0508", SOC: "51-4121", Title: "Welders, Cutters, Solderers, and Brazers"},
		{CIP: "48.0501", SOC: "51-4041", Title: "Machinists"},
		{CIP: "48.0503", SOC: "51-4011", Title: "Computer Numerically Controlled Tool Operators"},

		// Computer and information sciences
		{CIP: "11", SOC: "15-1212", Title: "Information Security Analysts"},
		{CIP: "11.0901", SOC: "15-1231", Title: "Computer Network Support Specialists"},
		{CIP: "11.1003", SOC: "15-1212", Title: "Information Security Analysts"},

		// Cosmetology
		{CIP: "12", SOC: "39-5012", Title: "Hairdressers, Hairstylists, and Cosmetologists"},
		{CIP: "12.0401", SOC: "39-5012", Title: "Hairdressers, Hairstylists, and Cosmetologists"},
		{CIP: "12.0402", SOC: "39-5011", Title: "Barbers"},

		// Health professions
		{CIP: "51", SOC: "29-1141", Title: "Registered Nurses"},
		{CIP: "5106", SOC: "31-9091", Title: "Dental Assistants"},
		{CIP: "5108", SOC: "31-9092", Title: "Medical Assistants"},
		{CIP: "5138", SOC: "29-1141", Title: "Registered Nurses"},
		{CIP: "5139", SOC: "29-2061", Title: "Licensed Practical and Licensed Vocational Nurses"},
		{CIP: "51.3801", SOC: "29-1141", Title: "Registered Nurses"},
		{CIP: "51.3901", SOC: "29-2061", Title: "Licensed Practical and Licensed Vocational Nurses"},
		{CIP: "51.0601", SOC: "31-9091", Title: "Dental Assistants"},
		{CIP: "51.0801", SOC: "31-9092", Title: "Medical Assistants"},
		{CIP: "51.0904", SOC: "29-2042", Title: "Emergency Medical Technicians"},
	}
}

// curatedFile is the JSON5 layout of an extra curated mapping file.
type curatedFile struct {
	Mappings []model.CuratedMapping `json:"mappings"`
}

// LoadCuratedMappings returns the built-in mappings extended by path (and its
// .local override). An empty path returns the built-ins only. A file entry
// with the same (cip, soc) replaces the built-in title.
func LoadCuratedMappings(path string) ([]model.CuratedMapping, error) {
	mappings := DefaultCuratedMappings()
	if path == "" {
		return mappings, nil
	}

	file, err := config.ReadConfig[curatedFile](path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, etlerr.New(etlerr.KindNotFound, path, "curated mapping file not found", err)
		}
		return nil, etlerr.New(etlerr.KindConfig, path, "invalid curated mapping file", err)
	}

	index := make(map[string]int, len(mappings))
	for i, m := range mappings {
		index[m.CIP+"|"+m.SOC] = i
	}
	for _, m := range file.Mappings {
		key := m.CIP + "|" + m.SOC
		if i, ok := index[key]; ok {
			mappings[i] = m
			continue
		}
		index[key] = len(mappings)
		mappings = append(mappings, m)
	}
	return mappings, nil
}
