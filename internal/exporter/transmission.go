package exporter

import (
	"fmt"
	"log/slog"

	"macpulse/internal/config"
	"macpulse/internal/transmission"
)

// ValidationHistoryCSV accumulates validation records across runs
const ValidationHistoryCSV = "validation_history.csv"

// TransmissionExporter writes report tables as CSV files and workbooks
type TransmissionExporter struct {
	csv    *CSVWriter
	paths  *config.Paths
	logger *slog.Logger
}

// NewTransmissionExporter creates an exporter rooted at the reports directory
func NewTransmissionExporter(paths *config.Paths, logger *slog.Logger) *TransmissionExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransmissionExporter{
		csv:    NewCSVWriter(paths),
		paths:  paths,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// MatrixRecords renders m with a header of shock columns; each row is the
// responding pillar
func MatrixRecords(m transmission.Matrix, pillars []transmission.Pillar) ([]string, [][]string) {
	headers := make([]string, 0, len(pillars)+1)
	headers = append(headers, "responder")
	for _, p := range pillars {
		headers = append(headers, string(p))
	}

	records := make([][]string, 0, len(m))
	for i, row := range m {
		record := make([]string, 0, len(row)+1)
		record = append(record, string(pillars[i]))
		for _, v := range row {
			record = append(record, formatFloat(v))
		}
		records = append(records, record)
	}
	return headers, records
}

// CausalityRecords renders the Granger table
func CausalityRecords(results []transmission.CausalityResult) ([]string, [][]string) {
	headers := []string{"cause", "effect", "f_statistic", "p_value", "lags", "significant"}
	records := make([][]string, 0, len(results))
	for _, c := range results {
		records = append(records, []string{
			string(c.Cause),
			string(c.Effect),
			formatFloat(c.FStatistic),
			formatFloat(c.PValue),
			formatInt(c.Lags),
			formatBool(c.Significant),
		})
	}
	return headers, records
}

// ValidationRecords renders validation records tagged with the run ID
func ValidationRecords(runID string, records []transmission.ValidationRecord) ([]string, [][]string) {
	headers := []string{"run_id", "scenario", "as_of", "predicted", "realized", "abs_error"}
	out := make([][]string, 0, len(records))
	for _, v := range records {
		out = append(out, []string{
			runID,
			v.Scenario,
			formatDate(v.AsOf),
			formatFloat(v.Predicted),
			formatFloat(v.Realized),
			formatFloat(v.AbsError),
		})
	}
	return headers, out
}

// ExportMatrix writes the normalized transmission matrix
func (e *TransmissionExporter) ExportMatrix(r *transmission.Report, filePath string) error {
	if r == nil || r.Estimate == nil {
		return fmt.Errorf("report has no estimate")
	}
	headers, records := MatrixRecords(r.Estimate.Transmission, r.Estimate.Pillars)
	if err := e.csv.WriteSimpleCSV(filePath, headers, records); err != nil {
		return fmt.Errorf("failed to export transmission matrix: %w", err)
	}
	return nil
}

// ExportCausality writes the pairwise Granger results
func (e *TransmissionExporter) ExportCausality(r *transmission.Report, filePath string) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	headers, records := CausalityRecords(r.Causality)
	if err := e.csv.WriteSimpleCSV(filePath, headers, records); err != nil {
		return fmt.Errorf("failed to export causality table: %w", err)
	}
	return nil
}

// AppendValidationHistory appends records to the validation history file
func (e *TransmissionExporter) AppendValidationHistory(runID string, records []transmission.ValidationRecord) error {
	if len(records) == 0 {
		return nil
	}
	headers, rows := ValidationRecords(runID, records)
	if err := e.csv.AppendToCSV(ValidationHistoryCSV, headers, rows); err != nil {
		return fmt.Errorf("failed to append validation history: %w", err)
	}
	return nil
}

// ExportAll writes the matrix CSV, causality CSV and workbook into the reports
// directory and returns the written paths
func (e *TransmissionExporter) ExportAll(r *transmission.Report) ([]string, error) {
	written := make([]string, 0, 3)

	if err := e.ExportMatrix(r, config.LatestMatrixCSV); err != nil {
		return written, err
	}
	written = append(written, e.csv.resolvePath(config.LatestMatrixCSV))

	if len(r.Causality) > 0 {
		if err := e.ExportCausality(r, config.LatestCausalityCSV); err != nil {
			return written, err
		}
		written = append(written, e.csv.resolvePath(config.LatestCausalityCSV))
	}

	workbook := e.csv.resolvePath(config.LatestWorkbook)
	if err := ExportWorkbook(r, workbook); err != nil {
		return written, err
	}
	written = append(written, workbook)

	e.logger.Info("Exported transmission report",
		slog.String("run_id", r.RunID),
		slog.Any("files", written))
	return written, nil
}
