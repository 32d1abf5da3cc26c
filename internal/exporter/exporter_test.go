package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"macpulse/internal/config"
	"macpulse/internal/transmission"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.ResolvePaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func filledMatrix(v float64) transmission.Matrix {
	n := len(transmission.Pillars())
	m := transmission.NewMatrix(n, n)
	for i := range m {
		for j := range m[i] {
			m[i][j] = v + float64(i)/10 - float64(j)/100
		}
	}
	return m
}

func sampleReport() *transmission.Report {
	pillars := transmission.Pillars()
	return &transmission.Report{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Params:      transmission.DefaultParams(),
		Inputs: []transmission.SeriesSummary{
			{Pillar: transmission.Policy, Mean: 0.5, StdDev: 0.1, Min: 0.2, Max: 0.8},
		},
		Estimate: &transmission.VAREstimate{
			Pillars:            pillars,
			Ordering:           pillars,
			LagOrder:           2,
			BIC:                -12.5,
			Transmission:       filledMatrix(0.1),
			CumulativeResponse: filledMatrix(1),
			Identified:         true,
		},
		Robustness: &transmission.RobustnessResult{
			Orderings:   720,
			Succeeded:   720,
			Median:      filledMatrix(0.2),
			Pct10:       filledMatrix(0.1),
			Pct90:       filledMatrix(0.3),
			Generalized: filledMatrix(0.2),
		},
		Acceleration: &transmission.AccelerationFactors{
			Threshold: 0.5,
			NormalObs: 60,
			StressObs: 40,
			Normal:    filledMatrix(0.1),
			Stress:    filledMatrix(0.2),
			Ratio:     filledMatrix(1),
		},
		Causality: []transmission.CausalityResult{
			{Cause: transmission.Policy, Effect: transmission.Liquidity, FStatistic: 12.5, PValue: 0.0001, Lags: 2, Significant: true},
			{Cause: transmission.Liquidity, Effect: transmission.Policy, FStatistic: 0.3, PValue: 0.74, Lags: 2},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestMatrixRecords(t *testing.T) {
	m := filledMatrix(0)
	headers, records := MatrixRecords(m, transmission.Pillars())

	assert.Equal(t, []string{"responder", "policy", "valuation", "contagion", "liquidity", "volatility", "positioning"}, headers)
	require.Len(t, records, 6)
	assert.Equal(t, "valuation", records[1][0])
	assert.Equal(t, "0.090000", records[1][2])
}

func TestExportMatrixAndCausality(t *testing.T) {
	paths := testPaths(t)
	exp := NewTransmissionExporter(paths, nil)
	report := sampleReport()

	require.NoError(t, exp.ExportMatrix(report, config.LatestMatrixCSV))
	records := readCSV(t, paths.GetReportPath(config.LatestMatrixCSV))
	require.Len(t, records, 7)
	assert.Equal(t, "responder", records[0][0])
	assert.Equal(t, "policy", records[1][0])
	assert.Equal(t, "0.100000", records[1][1])

	require.NoError(t, exp.ExportCausality(report, config.LatestCausalityCSV))
	records = readCSV(t, paths.GetReportPath(config.LatestCausalityCSV))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"policy", "liquidity", "12.500000", "0.000100", "2", "true"}, records[1])

	assert.Error(t, exp.ExportMatrix(&transmission.Report{}, "x.csv"))
	assert.Error(t, exp.ExportCausality(nil, "x.csv"))
}

func TestAppendValidationHistory(t *testing.T) {
	paths := testPaths(t)
	exp := NewTransmissionExporter(paths, nil)
	asOf := time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC)

	require.NoError(t, exp.AppendValidationHistory("run-1", nil))
	assert.False(t, config.FileExists(paths.GetReportPath(ValidationHistoryCSV)))

	rec := transmission.ValidationRecord{Scenario: "covid", AsOf: asOf, Predicted: 0.2, Realized: 0.35, AbsError: 0.15}
	require.NoError(t, exp.AppendValidationHistory("run-1", []transmission.ValidationRecord{rec}))
	require.NoError(t, exp.AppendValidationHistory("run-2", []transmission.ValidationRecord{rec, rec}))

	records := readCSV(t, paths.GetReportPath(ValidationHistoryCSV))
	require.Len(t, records, 4)
	assert.Equal(t, "run_id", records[0][0])
	assert.Equal(t, []string{"run-1", "covid", "2020-03-16", "0.200000", "0.350000", "0.150000"}, records[1])
	assert.Equal(t, "run-2", records[3][0])
}

func TestExportWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transmission.xlsx")
	require.NoError(t, ExportWorkbook(sampleReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t,
		[]string{SheetTransmission, SheetRobustness, SheetAcceleration, SheetCausality, SheetInputs},
		f.GetSheetList())

	title, err := f.GetCellValue(SheetTransmission, "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "Transmission matrix")

	rows, err := f.GetRows(SheetCausality)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "cause", rows[0][0])
	assert.Equal(t, "policy", rows[1][0])
	assert.Equal(t, "TRUE", rows[1][5])

	rows, err = f.GetRows(SheetInputs)
	require.NoError(t, err)
	assert.Equal(t, "policy", rows[1][0])

	assert.Error(t, ExportWorkbook(&transmission.Report{}, path))
}

func TestExportWorkbookOptionalSections(t *testing.T) {
	report := sampleReport()
	report.Robustness = nil
	report.Acceleration = nil

	path := filepath.Join(t.TempDir(), "t.xlsx")
	require.NoError(t, ExportWorkbook(report, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetTransmission, SheetCausality, SheetInputs}, f.GetSheetList())
}

func TestExportAll(t *testing.T) {
	paths := testPaths(t)
	exp := NewTransmissionExporter(paths, nil)

	files, err := exp.ExportAll(sampleReport())
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, f := range files {
		assert.FileExists(t, f)
	}

	report := sampleReport()
	report.Causality = []transmission.CausalityResult{}
	files, err = exp.ExportAll(report)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
