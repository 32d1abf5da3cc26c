// Package services implements the business logic layer of MAC Pulse.
// It sits between the HTTP handlers and the estimator, keeping request
// handling free of persistence and instrumentation concerns.
//
// # Available Services
//
//   - TransmissionService: runs estimations, caches the latest report,
//     persists JSON/text/CSV/XLSX outputs, records validation and
//     simulates stress cascades
//   - HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Services return errors the transport layer can map onto responses:
//
//   - *transmission.ValidationError for structurally invalid series
//   - *errors.AppError for estimation, parsing and storage failures
//   - ErrNoReport when nothing has been estimated yet
//   - ErrEstimateRunning when a run is already in flight
//   - ErrReportSuperseded when a newer run replaced the report being updated
//
// # Concurrency
//
// The cached report is guarded by an RWMutex; readers never block each
// other. Only one estimation runs at a time and a second request fails
// fast instead of queueing. Installing a report and appending validation
// records are serialized so concurrent appends are never lost.
package services
