package api

import (
	"macpulse/internal/transmission"
)

// EstimateResponse wraps a fresh report. Warnings list non-fatal problems,
// such as outputs that could not be written.
type EstimateResponse struct {
	Report   *transmission.Report `json:"report"`
	Warnings []string             `json:"warnings,omitempty"`
}

// MatrixResponse is one matrix of the latest report, rows responding to
// shocks in columns. Dict is the source→target mapping of the same matrix.
// The dict view carries only the report's transmission dict.
type MatrixResponse struct {
	RunID   string                        `json:"run_id"`
	View    string                        `json:"view"`
	Pillars []transmission.Pillar         `json:"pillars"`
	Matrix  transmission.Matrix           `json:"matrix,omitempty"`
	Dict    transmission.TransmissionDict `json:"dict"`
}

// CausalityResponse lists the pairwise Granger tests of the latest report
type CausalityResponse struct {
	RunID        string                         `json:"run_id"`
	Significance float64                        `json:"significance"`
	Significant  int                            `json:"significant"`
	Results      []transmission.CausalityResult `json:"results"`
}

// ValidationResponse summarizes the out-of-sample record of a report.
// MeanAbsError is absent while there are no records.
type ValidationResponse struct {
	RunID        string                          `json:"run_id"`
	Records      []transmission.ValidationRecord `json:"records"`
	MeanAbsError *float64                        `json:"mean_abs_error,omitempty"`
}

// NewValidationResponse summarizes the validation records of r
func NewValidationResponse(r *transmission.Report) ValidationResponse {
	resp := ValidationResponse{
		RunID:   r.RunID,
		Records: r.Validation,
	}
	if resp.Records == nil {
		resp.Records = []transmission.ValidationRecord{}
	}
	if len(r.Validation) > 0 {
		mae := r.MeanAbsError()
		resp.MeanAbsError = &mae
	}
	return resp
}
