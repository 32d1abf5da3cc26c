package dataprocessing

import (
	"time"

	"macpulse/internal/transmission"
)

// CompositeColumn is the header of the optional composite score column
const CompositeColumn = "mac"

// DateColumn is the header of the required date column
const DateColumn = "date"

// ParseOptions configures table parsing
type ParseOptions struct {
	// Sheet selects a workbook sheet; empty means the first sheet
	Sheet string
	// FillMissing forward-fills empty pillar cells instead of failing
	FillMissing bool
}

// PillarTable is a parsed, date-sorted pillar score table
type PillarTable struct {
	Dates  []time.Time
	Series transmission.PillarSeries
	// Composite is nil when the source had no composite column
	Composite []float64
	// Filled counts the cells populated by forward-fill
	Filled int
}

// Len returns the number of dated rows
func (t *PillarTable) Len() int {
	return len(t.Dates)
}

// Input converts the table into estimator input
func (t *PillarTable) Input(validation []transmission.ValidationRecord) transmission.Input {
	return transmission.Input{
		Series:     t.Series,
		Composite:  t.Composite,
		Validation: validation,
	}
}

// Span returns the first and last dates
func (t *PillarTable) Span() (first, last time.Time) {
	if len(t.Dates) == 0 {
		return time.Time{}, time.Time{}
	}
	return t.Dates[0], t.Dates[len(t.Dates)-1]
}
