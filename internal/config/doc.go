// Package config provides centralized configuration management for MAC Pulse.
// It loads configuration from several sources, validates it, and converts the
// estimator section into transmission.Params.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern MACPULSE_<SECTION>_<FIELD>:
//
//	MACPULSE_SERVER_PORT=8080
//	MACPULSE_LOGGING_LEVEL=debug
//	MACPULSE_ESTIMATOR_HORIZON=8
//	MACPULSE_ESTIMATOR_CANDIDATE_LAGS=1,2,3
//	MACPULSE_ESTIMATOR_ORDERING=policy,valuation,contagion,liquidity,volatility,positioning
//	MACPULSE_ESTIMATOR_P_VALUE_METHOD=exact
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	params, err := cfg.Estimator.Params()
//
// Paths are resolved once with ResolvePaths and passed to the components
// that read inputs or write reports.
package config
