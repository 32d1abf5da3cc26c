// Package dataprocessing reads pillar-score tables from CSV files and Excel
// workbooks and turns them into estimator input.
//
// # Architecture
//
// The package is organized into two components:
//
// 1. Parser: reads a date column, the six pillar columns and an optional
// composite ("mac") column into a PillarTable sorted by date
// 2. Processor: forward-fills gaps left by pillars that were not scored on
// every date
//
// Header names are matched case-insensitively, so "Date", "POLICY" and
// " liquidity " all resolve. Columns the parser does not know are ignored.
//
// # Usage
//
//	table, err := dataprocessing.ParseFile("data/pillars.xlsx", dataprocessing.ParseOptions{})
//	if err != nil {
//	    return err
//	}
//	report, err := estimator.Run(ctx, table.Input(nil))
//
// Missing cells are rejected unless ParseOptions.FillMissing is set, in which
// case the last scored value of the pillar is carried forward.
package dataprocessing
