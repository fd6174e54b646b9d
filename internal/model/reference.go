package model

import "github.com/printdesk/backend/internal/pricing"

// Unit is a length unit offered for line-item dimensions.
type Unit struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	AreaFactor float64 `json:"area_factor"` // square feet per squared unit
}

// Material is a print medium and its throughput.
type Material struct {
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	Throughput float64 `json:"throughput"` // square feet per hour
}

// UnitTable indexes units by key.
func UnitTable(units []*Unit) pricing.UnitTable {
	t := make(pricing.UnitTable, len(units))
	for _, u := range units {
		t[u.Key] = u.AreaFactor
	}
	return t
}

// MaterialTable indexes materials by key.
func MaterialTable(materials []*Material) pricing.MaterialTable {
	t := make(pricing.MaterialTable, len(materials))
	for _, m := range materials {
		t[m.Key] = m.Throughput
	}
	return t
}
