// Package shared is the home of helpers used across MAC Pulse packages that
// belong to no single layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - synthetic pillar series and pillar tables for estimator tests
//   - temporary resolved paths with the working directories created
//   - a buffered slog handler for asserting on log output
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    paths := testutil.TempPaths(t)
//	    series := testutil.RandomWalks(1, 120)
//	    // ...
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "Persisted")
//	}
//
// testutil must never be imported from non-test code.
package shared
