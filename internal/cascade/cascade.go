// Package cascade simulates how a stress shock spreads across the pillars
// using the transmission dictionary as per-period spillover coefficients.
//
// Stress levels live in [0, 1] where 1 is maximum stress. Pillar scores use
// the opposite convention (1 is healthy), see StressFromScores.
package cascade

import (
	"fmt"
	"math"

	"macpulse/internal/transmission"
)

// State is the stress level of every pillar in one period
type State map[transmission.Pillar]float64

// Clone returns a copy of the state
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Mean returns the average stress across the canonical pillars
func (s State) Mean() float64 {
	pillars := transmission.Pillars()
	total := 0.0
	for _, p := range pillars {
		total += s[p]
	}
	return total / float64(len(pillars))
}

// Options controls a simulation
type Options struct {
	Periods int     `json:"periods" validate:"min=1,max=520"`
	Damping float64 `json:"damping" validate:"gte=0,lte=1"`
}

// DefaultOptions returns eight periods with half-strength spillover
func DefaultOptions() Options {
	return Options{Periods: 8, Damping: 0.5}
}

// Step is the state after one simulated period
type Step struct {
	Period int     `json:"period"`
	Stress State   `json:"stress"`
	Mean   float64 `json:"mean"`
}

// Path is the full simulated trajectory, period 0 being the initial state
type Path struct {
	Steps []Step `json:"steps"`
	// Peak is the pillar with the highest final stress
	Peak transmission.Pillar `json:"peak"`
	// Amplification is final mean stress over initial mean stress
	Amplification float64 `json:"amplification"`
}

// Final returns the last state of the path
func (p *Path) Final() State {
	return p.Steps[len(p.Steps)-1].Stress
}

// ValidateDict checks that a dictionary is a structural drop-in for the
// interaction table: every pillar present as source and target, finite
// coefficients and a zero diagonal.
func ValidateDict(d transmission.TransmissionDict) error {
	pillars := transmission.Pillars()
	for _, source := range pillars {
		row, ok := d[source]
		if !ok {
			return fmt.Errorf("transmission dictionary missing source %q", source)
		}
		for _, target := range pillars {
			v, ok := row[target]
			if !ok {
				return fmt.Errorf("transmission dictionary missing %q -> %q", source, target)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("transmission coefficient %q -> %q is not finite", source, target)
			}
			if source == target && v != 0 {
				return fmt.Errorf("transmission dictionary has non-zero diagonal for %q", source)
			}
		}
	}
	return nil
}

// Simulate propagates the initial stress for opts.Periods periods:
//
//	next[t] = clamp(cur[t] + damping·Σ_s dict[s][t]·cur[s], 0, 1)
func Simulate(d transmission.TransmissionDict, initial State, opts Options) (*Path, error) {
	if err := ValidateDict(d); err != nil {
		return nil, err
	}
	if opts.Periods < 1 {
		return nil, fmt.Errorf("periods must be positive, got %d", opts.Periods)
	}
	if opts.Damping < 0 || opts.Damping > 1 {
		return nil, fmt.Errorf("damping must be in [0, 1], got %v", opts.Damping)
	}

	pillars := transmission.Pillars()
	cur := make(State, len(pillars))
	for _, p := range pillars {
		v, ok := initial[p]
		if !ok {
			return nil, fmt.Errorf("initial state missing pillar %q", p)
		}
		if math.IsNaN(v) {
			return nil, fmt.Errorf("initial stress for %q is NaN", p)
		}
		cur[p] = clamp(v)
	}

	path := &Path{Steps: make([]Step, 0, opts.Periods+1)}
	path.Steps = append(path.Steps, Step{Period: 0, Stress: cur.Clone(), Mean: cur.Mean()})

	for period := 1; period <= opts.Periods; period++ {
		next := make(State, len(pillars))
		for _, target := range pillars {
			spill := 0.0
			for _, source := range pillars {
				spill += d[source][target] * cur[source]
			}
			next[target] = clamp(cur[target] + opts.Damping*spill)
		}
		cur = next
		path.Steps = append(path.Steps, Step{Period: period, Stress: cur.Clone(), Mean: cur.Mean()})
	}

	path.Peak = pillars[0]
	for _, p := range pillars[1:] {
		if cur[p] > cur[path.Peak] {
			path.Peak = p
		}
	}
	if start := path.Steps[0].Mean; start > 0 {
		path.Amplification = cur.Mean() / start
	} else {
		path.Amplification = 1
	}
	return path, nil
}

// Shock returns a copy of base with one pillar's stress raised by magnitude
func Shock(base State, pillar transmission.Pillar, magnitude float64) State {
	out := base.Clone()
	out[pillar] = clamp(out[pillar] + magnitude)
	return out
}

// StressFromScores converts the latest pillar scores (1 healthy, 0 stressed)
// into stress levels.
func StressFromScores(series transmission.PillarSeries) State {
	state := make(State, len(series))
	for p, values := range series {
		if len(values) == 0 {
			continue
		}
		state[p] = clamp(1 - values[len(values)-1])
	}
	return state
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
