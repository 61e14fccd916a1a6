package models

// Career partitions books and students by academic program.
type Career string

const (
	CareerAccounting  Career = "accounting"
	CareerNursing     Career = "nursing"
	CareerAgriculture Career = "agriculture"
	CareerComputing   Career = "computing"
)

var careerNames = map[Career]string{
	CareerAccounting:  "Contabilidad",
	CareerNursing:     "Enfermería",
	CareerAgriculture: "Agropecuaria",
	CareerComputing:   "Apsti",
}

// Careers lists every career in display order.
func Careers() []Career {
	return []Career{CareerAccounting, CareerNursing, CareerAgriculture, CareerComputing}
}

// Valid reports whether c is a known career.
func (c Career) Valid() bool {
	_, ok := careerNames[c]
	return ok
}

// DisplayName returns the localized program name.
func (c Career) DisplayName() string {
	if name, ok := careerNames[c]; ok {
		return name
	}
	return string(c)
}

// CareerSummary aggregates catalog figures for one career.
type CareerSummary struct {
	Career          Career  `json:"career"`
	Name            string  `json:"name"`
	Books           int     `json:"books"`
	Copies          int     `json:"copies"`
	AvailableCopies int     `json:"available_copies"`
	Students        int     `json:"students"`
	Percentage      float64 `json:"percentage"`
}
