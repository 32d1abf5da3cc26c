package http

import (
	"context"

	"macpulse/internal/cascade"
	"macpulse/internal/transmission"
)

// TransmissionServiceInterface defines the estimator operations served over HTTP
type TransmissionServiceInterface interface {
	Estimate(ctx context.Context, in transmission.Input) (*transmission.Report, error)
	Latest(ctx context.Context) (*transmission.Report, error)
	LatestText(ctx context.Context) (string, error)
	AddValidation(ctx context.Context, records ...transmission.ValidationRecord) (*transmission.Report, error)
	SimulateCascade(ctx context.Context, initial cascade.State, opts cascade.Options) (*cascade.Path, error)
}
