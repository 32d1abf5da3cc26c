package dataprocessing

import (
	"fmt"
	"math"

	apierrors "macpulse/internal/errors"
	"macpulse/internal/transmission"
)

// ForwardFillProcessor fills gaps in pillar series with the last scored value
type ForwardFillProcessor struct{}

// NewForwardFillProcessor creates a new forward-fill processor
func NewForwardFillProcessor() *ForwardFillProcessor {
	return &ForwardFillProcessor{}
}

// FillStatistics represents forward-fill operation statistics
type FillStatistics struct {
	FilledCells int
	// FilledByPillar counts filled cells per pillar; the composite is keyed
	// by CompositeColumn
	FilledByPillar map[string]int
}

// Fill forward-fills NaN cells in place. A series whose first value is
// missing has nothing to carry forward and is an error.
func (f *ForwardFillProcessor) Fill(t *PillarTable) (FillStatistics, error) {
	stats := FillStatistics{FilledByPillar: make(map[string]int)}

	for _, p := range transmission.Pillars() {
		n, err := f.fillSeries(t.Series[p])
		if err != nil {
			return stats, apierrors.NewParsingError(fmt.Sprintf("cannot forward-fill %s", p), err).
				WithContext("column", string(p))
		}
		if n > 0 {
			stats.FilledByPillar[string(p)] = n
			stats.FilledCells += n
		}
	}

	if t.Composite != nil {
		n, err := f.fillSeries(t.Composite)
		if err != nil {
			return stats, apierrors.NewParsingError("cannot forward-fill composite", err)
		}
		if n > 0 {
			stats.FilledByPillar[CompositeColumn] = n
			stats.FilledCells += n
		}
	}
	return stats, nil
}

// fillSeries replaces NaN entries with the previous value
func (f *ForwardFillProcessor) fillSeries(values []float64) (int, error) {
	filled := 0
	for i, v := range values {
		if !math.IsNaN(v) {
			continue
		}
		if i == 0 {
			return 0, fmt.Errorf("first value is missing")
		}
		values[i] = values[i-1]
		filled++
	}
	return filled, nil
}
