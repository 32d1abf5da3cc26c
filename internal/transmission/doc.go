// Package transmission estimates how stress propagates between the six MAC pillars.
//
// Given weekly pillar scores (policy, valuation, contagion, liquidity, volatility,
// positioning) the package fits a reduced-form vector autoregression on first
// differences, identifies structural shocks with a Cholesky factorization of the
// residual covariance, and accumulates the impulse responses over a short horizon.
// The normalized result is the transmission matrix consumed by the shock-cascade
// simulator in place of a hand-authored interaction table.
//
// # Architecture
//
//   - types.go: pillars, parameters and result value objects
//   - linalg.go: ridge OLS and the Cholesky kernel (soft failure on non-PD input)
//   - var.go: design matrices, reduced-form VAR fit, residual covariance and BIC
//   - lag.go: BIC lag-order selection
//   - irf.go: Cholesky-identified and generalized cumulative impulse responses
//   - robustness.go: response distribution over identification orderings
//   - regime.go: normal/stress re-estimation and acceleration factors
//   - causality.go: pairwise Granger tests with an approximate F p-value
//   - estimator.go: orchestration of the full report
//   - dict.go: conversion between matrices and the nested transmission dictionary
//   - format.go, persist.go: text and JSON output
//
// # Usage
//
//	est, err := transmission.NewEstimator(transmission.DefaultParams(), slog.Default())
//	if err != nil {
//	    return err
//	}
//	report, err := est.Run(ctx, transmission.Input{
//	    Series:    series,    // map[Pillar][]float64, equal lengths
//	    Composite: macScores, // optional, enables regime analysis
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Print(transmission.FormatReport(report))
//	path, err := cascade.Simulate(report.Transmission, initial, cascade.DefaultOptions())
//
// # Reading the matrices
//
// Every matrix is indexed in the canonical pillar order returned by Pillars().
// Entry [i][j] is the cumulative response of pillar i to a one standard deviation
// structural shock in pillar j. The transmission dictionary flips this into
// source → target form: dict[j][i] == matrix[i][j], with the diagonal forced to zero.
//
// # Failure model
//
// The estimator runs unattended inside long backtests, so numerical trouble degrades
// instead of failing. Near-singular regressions are ridge regularized, a non positive
// definite covariance gets one jittered retry before falling back to the reduced-form
// response, short samples produce neutral values (all-zero matrices, F=0 and p=1) and a
// degenerate covariance determinant is replaced by a large log-determinant so lag
// selection avoids it. Only structurally invalid input returns an error.
package transmission
