package cascade

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/transmission"
)

func zeroDict() transmission.TransmissionDict {
	pillars := transmission.Pillars()
	return transmission.MatrixToDict(transmission.NewMatrix(len(pillars), len(pillars)), pillars)
}

func uniform(v float64) State {
	s := make(State)
	for _, p := range transmission.Pillars() {
		s[p] = v
	}
	return s
}

func TestValidateDict(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(transmission.TransmissionDict)
		wantErr bool
	}{
		{"zero dict", func(transmission.TransmissionDict) {}, false},
		{"missing source", func(d transmission.TransmissionDict) { delete(d, transmission.Policy) }, true},
		{"missing target", func(d transmission.TransmissionDict) { delete(d[transmission.Policy], transmission.Liquidity) }, true},
		{"non-zero diagonal", func(d transmission.TransmissionDict) { d[transmission.Liquidity][transmission.Liquidity] = 0.3 }, true},
		{"non-finite", func(d transmission.TransmissionDict) { d[transmission.Liquidity][transmission.Volatility] = math.NaN() }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := zeroDict()
			tt.mutate(d)
			err := ValidateDict(d)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSimulateSpillover(t *testing.T) {
	d := zeroDict()
	d[transmission.Liquidity][transmission.Volatility] = 0.5

	initial := uniform(0)
	initial[transmission.Liquidity] = 0.4

	path, err := Simulate(d, initial, Options{Periods: 2, Damping: 1})
	require.NoError(t, err)
	require.Len(t, path.Steps, 3)

	// period 1: volatility += 0.5·0.4
	assert.InDelta(t, 0.2, path.Steps[1].Stress[transmission.Volatility], 1e-12)
	assert.InDelta(t, 0.4, path.Steps[2].Stress[transmission.Volatility], 1e-12)
	assert.InDelta(t, 0.4, path.Final()[transmission.Liquidity], 1e-12)
	assert.Equal(t, 0.0, path.Final()[transmission.Policy])
	assert.Equal(t, transmission.Liquidity, path.Peak)
	assert.InDelta(t, 2.0, path.Amplification, 1e-12)

	// the initial state is not modified
	assert.Equal(t, 0.0, initial[transmission.Volatility])
}

func TestSimulateClampsToUnitInterval(t *testing.T) {
	d := zeroDict()
	for _, s := range transmission.Pillars() {
		for _, tgt := range transmission.Pillars() {
			if s != tgt {
				d[s][tgt] = 1
			}
		}
	}
	d[transmission.Policy][transmission.Valuation] = -1

	path, err := Simulate(d, uniform(0.6), Options{Periods: 5, Damping: 1})
	require.NoError(t, err)
	for _, step := range path.Steps {
		for _, v := range step.Stress {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
	assert.Equal(t, 1.0, path.Final()[transmission.Liquidity])
}

func TestSimulateZeroDampingIsStatic(t *testing.T) {
	d := zeroDict()
	d[transmission.Contagion][transmission.Liquidity] = 0.9

	initial := uniform(0.3)
	path, err := Simulate(d, initial, Options{Periods: 3, Damping: 0})
	require.NoError(t, err)
	assert.Equal(t, initial, path.Final())
	assert.Equal(t, 1.0, path.Amplification)
}

func TestSimulateRejectsBadInput(t *testing.T) {
	d := zeroDict()

	_, err := Simulate(d, uniform(0.1), Options{Periods: 0, Damping: 0.5})
	assert.Error(t, err)

	_, err = Simulate(d, uniform(0.1), Options{Periods: 3, Damping: 1.5})
	assert.Error(t, err)

	partial := uniform(0.1)
	delete(partial, transmission.Positioning)
	_, err = Simulate(d, partial, DefaultOptions())
	assert.Error(t, err)

	delete(d, transmission.Policy)
	_, err = Simulate(d, uniform(0.1), DefaultOptions())
	assert.Error(t, err)
}

func TestShockAndStressFromScores(t *testing.T) {
	base := uniform(0.2)
	shocked := Shock(base, transmission.Liquidity, 0.9)
	assert.Equal(t, 1.0, shocked[transmission.Liquidity])
	assert.Equal(t, 0.2, base[transmission.Liquidity])

	state := StressFromScores(transmission.PillarSeries{
		transmission.Policy:    {0.9, 0.8},
		transmission.Liquidity: {0.5, 0.25},
		transmission.Valuation: {},
	})
	assert.InDelta(t, 0.2, state[transmission.Policy], 1e-12)
	assert.InDelta(t, 0.75, state[transmission.Liquidity], 1e-12)
	_, ok := state[transmission.Valuation]
	assert.False(t, ok)
}

func TestSimulateWithEstimatedTransmission(t *testing.T) {
	pillars := transmission.Pillars()
	m := transmission.NewMatrix(len(pillars), len(pillars))
	for i := range m {
		for j := range m[i] {
			m[i][j] = 0.1 * float64((i+j)%3)
		}
	}
	d := transmission.MatrixToDict(transmission.Normalize(m), pillars)

	initial := Shock(uniform(0.1), transmission.Liquidity, 0.5)
	path, err := Simulate(d, initial, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, path.Steps, DefaultOptions().Periods+1)
	assert.GreaterOrEqual(t, path.Amplification, 1.0)
}
