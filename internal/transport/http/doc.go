// Package http implements the HTTP handlers of the MAC Pulse service.
// Handlers stay thin: they decode and validate requests, call the service
// layer and render responses. Estimation logic lives in the transmission
// package and persistence in services.
//
// # Routes
//
// Mounted under /api/v1/transmission:
//
//	POST /estimate        run an estimation on a JSON pillar series body
//	GET  /latest          latest structured report
//	GET  /latest/text     latest report rendered as text
//	GET  /matrix          one matrix of the latest report (?view=normalized,
//	                      raw, dict, median, p10, p90, girf, normal, stress
//	                      or acceleration)
//	GET  /causality       pairwise Granger tests (?significant=true&limit=N)
//	GET  /validation      out-of-sample records of the latest report
//	POST /validation      append out-of-sample records
//	POST /cascade         simulate stress propagation through the dict
//
// Health routes live under /api (health, health/ready, health/live,
// version) and the Prometheus scrape endpoint at /metrics.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/transmission/invalid-series",
//	    "title": "Invalid Input",
//	    "status": 400,
//	    "detail": "series for pillar \"policy\" has 10 values, expected 52",
//	    "instance": "/api/v1/transmission/estimate",
//	    "trace_id": "6f1c..."
//	}
//
// Service sentinels are mapped before rendering: no report yet is 404 and
// a concurrent estimation is 409.
//
// # Testing
//
// Handlers are tested with httptest against a stub service and against
// the real service backed by a temporary directory.
package http
