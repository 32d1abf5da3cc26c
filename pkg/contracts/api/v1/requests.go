// Package api contains the HTTP API contract of MAC Pulse.
// Version v1 represents the current stable API version.
package api

import (
	"time"

	"macpulse/internal/cascade"
	"macpulse/internal/transmission"
)

// Transmission API Requests

// EstimateRequest carries the weekly pillar scores of one estimation.
// Composite, when present, has T or T-1 values and enables the regime split.
type EstimateRequest struct {
	Series     map[transmission.Pillar][]float64 `json:"series" validate:"required,len=6,dive,keys,pillar,endkeys,min=3"`
	Composite  []float64                         `json:"composite,omitempty" validate:"omitempty,min=2"`
	Validation []ValidationRecordRequest         `json:"validation,omitempty" validate:"omitempty,dive"`
}

// Input converts the request into estimator input
func (r EstimateRequest) Input() transmission.Input {
	series := make(transmission.PillarSeries, len(r.Series))
	for p, values := range r.Series {
		series[p] = values
	}
	return transmission.Input{
		Series:     series,
		Composite:  r.Composite,
		Validation: ValidationRecords(r.Validation),
	}
}

// ValidationRecordRequest is one out-of-sample check of the estimate
type ValidationRecordRequest struct {
	Scenario  string    `json:"scenario" validate:"required,max=128"`
	AsOf      time.Time `json:"as_of" validate:"required"`
	Predicted float64   `json:"predicted"`
	Realized  float64   `json:"realized"`
}

// ValidationRequest appends records to the latest report
type ValidationRequest struct {
	Records []ValidationRecordRequest `json:"records" validate:"required,min=1,dive"`
}

// ValidationRecords converts request records; the absolute error is
// derived by the estimator.
func ValidationRecords(in []ValidationRecordRequest) []transmission.ValidationRecord {
	if len(in) == 0 {
		return nil
	}
	out := make([]transmission.ValidationRecord, len(in))
	for i, r := range in {
		out[i] = transmission.ValidationRecord{
			Scenario:  r.Scenario,
			AsOf:      r.AsOf.UTC(),
			Predicted: r.Predicted,
			Realized:  r.Realized,
		}
	}
	return out
}

// Cascade API Requests

// ShockRequest raises (or lowers) the stress of one pillar before simulation
type ShockRequest struct {
	Pillar    transmission.Pillar `json:"pillar" validate:"required,pillar"`
	Magnitude float64             `json:"magnitude" validate:"gte=-1,lte=1"`
}

// CascadeRequest simulates stress propagation through the latest dictionary.
// Zero periods and a missing damping select the simulator defaults.
type CascadeRequest struct {
	Initial map[transmission.Pillar]float64 `json:"initial" validate:"required,len=6,dive,keys,pillar,endkeys,unitscore"`
	Shock   *ShockRequest                   `json:"shock,omitempty"`
	Periods int                             `json:"periods,omitempty" validate:"omitempty,min=1,max=520"`
	Damping *float64                        `json:"damping,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// State returns the initial stress state with the shock applied
func (r CascadeRequest) State() cascade.State {
	state := make(cascade.State, len(r.Initial))
	for p, v := range r.Initial {
		state[p] = v
	}
	if r.Shock != nil {
		state = cascade.Shock(state, r.Shock.Pillar, r.Shock.Magnitude)
	}
	return state
}

// Options returns the simulation options with defaults filled in
func (r CascadeRequest) Options() cascade.Options {
	opts := cascade.DefaultOptions()
	if r.Periods > 0 {
		opts.Periods = r.Periods
	}
	if r.Damping != nil {
		opts.Damping = *r.Damping
	}
	return opts
}

// Matrix views served by GET /matrix
const (
	ViewNormalized   = "normalized"
	ViewRaw          = "raw"
	ViewDict         = "dict"
	ViewMedian       = "median"
	ViewP10          = "p10"
	ViewP90          = "p90"
	ViewGIRF         = "girf"
	ViewNormal       = "normal"
	ViewStress       = "stress"
	ViewAcceleration = "acceleration"
)

// MatrixViews lists every accepted view
func MatrixViews() []string {
	return []string{
		ViewNormalized, ViewRaw, ViewDict, ViewMedian, ViewP10, ViewP90,
		ViewGIRF, ViewNormal, ViewStress, ViewAcceleration,
	}
}
