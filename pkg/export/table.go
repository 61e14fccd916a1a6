package export

import "fmt"

// Table is tabular export content. Widths are PDF column widths in millimetres
// and may be left empty for evenly split columns.
type Table struct {
	Title    string
	Subtitle string
	Headers  []string
	Widths   []float64
	Rows     [][]string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	if len(t.Widths) != 0 && len(t.Widths) != len(t.Headers) {
		return fmt.Errorf("table has %d widths for %d headers", len(t.Widths), len(t.Headers))
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}
