// Package app provides application initialization and lifecycle management
// for the MAC Pulse service. It loads nothing itself: callers pass a loaded
// configuration and the package wires logging, telemetry, the transmission
// service and the HTTP router around it.
//
// # Initialization Flow
//
//  1. Resolve and create the data, reports and logs directories
//  2. Initialize OpenTelemetry and the estimator instruments
//  3. Build the estimator from the estimator configuration section
//  4. Create the transmission and health services
//  5. Set up middleware, handlers and the HTTP server
//
// # Middleware Order
//
//	RequestID → RealIP → StripSlashes → OTel → Logger → Recoverer →
//	SecurityHeaders → CORS → RateLimiter → MaxBodySize → Compress
//
// The Prometheus scrape endpoint at /metrics bypasses everything after
// StripSlashes.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	application, err := app.NewApplication(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout and flushes telemetry.
package app
