// Package exporter writes transmission reports in spreadsheet-friendly forms.
//
// CSVWriter is the low-level writer; relative paths land in the reports
// directory and files get a UTF-8 BOM so Excel opens them correctly.
//
// TransmissionExporter writes the normalized matrix and the Granger table as
// CSV and appends validation records to a running history file.
// ExportWorkbook writes one workbook with a sheet per report section.
//
// Example usage:
//
//	exp := exporter.NewTransmissionExporter(paths, logger)
//	files, err := exp.ExportAll(report)
package exporter
