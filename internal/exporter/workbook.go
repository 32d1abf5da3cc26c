package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"macpulse/internal/transmission"
)

// Workbook sheet names
const (
	SheetTransmission = "Transmission"
	SheetRobustness   = "Robustness"
	SheetAcceleration = "Acceleration"
	SheetCausality    = "Causality"
	SheetInputs       = "Inputs"
)

// sheetWriter appends rows to one sheet and tracks the cursor
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	header int
}

func (s *sheetWriter) write(values ...interface{}) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	return s.f.SetSheetRow(s.sheet, cell, &values)
}

func (s *sheetWriter) title(text string) error {
	if err := s.write(text); err != nil {
		return err
	}
	cell, _ := excelize.CoordinatesToCellName(1, s.row)
	return s.f.SetCellStyle(s.sheet, cell, cell, s.header)
}

func (s *sheetWriter) blank() {
	s.row++
}

func (s *sheetWriter) matrix(m transmission.Matrix, pillars []transmission.Pillar) error {
	headers, _ := MatrixRecords(m, pillars)
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := s.write(row...); err != nil {
		return err
	}
	for i, values := range m {
		row := make([]interface{}, 0, len(values)+1)
		row = append(row, string(pillars[i]))
		for _, v := range values {
			row = append(row, v)
		}
		if err := s.write(row...); err != nil {
			return err
		}
	}
	return nil
}

// ExportWorkbook writes a multi-sheet workbook summarizing the report
func ExportWorkbook(r *transmission.Report, path string) error {
	if r == nil || r.Estimate == nil {
		return fmt.Errorf("report has no estimate")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetTransmission); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	sheets := []string{SheetTransmission}
	if r.Robustness != nil {
		sheets = append(sheets, SheetRobustness)
	}
	if r.Acceleration != nil {
		sheets = append(sheets, SheetAcceleration)
	}
	sheets = append(sheets, SheetCausality, SheetInputs)
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	pillars := r.Estimate.Pillars
	writers := map[string]func(*sheetWriter) error{
		SheetTransmission: func(s *sheetWriter) error {
			if err := s.title("Transmission matrix (row responds to shock in column)"); err != nil {
				return err
			}
			if err := s.write("Run ID", r.RunID); err != nil {
				return err
			}
			if err := s.write("Lag order", r.Estimate.LagOrder, "BIC", r.Estimate.BIC, "Identified", r.Estimate.Identified); err != nil {
				return err
			}
			s.blank()
			if err := s.matrix(r.Estimate.Transmission, pillars); err != nil {
				return err
			}
			s.blank()
			if err := s.title("Cumulative response"); err != nil {
				return err
			}
			return s.matrix(r.Estimate.CumulativeResponse, pillars)
		},
		SheetRobustness: func(s *sheetWriter) error {
			rob := r.Robustness
			if err := s.write("Orderings", rob.Orderings, "Identified", rob.Succeeded); err != nil {
				return err
			}
			for _, block := range []struct {
				name string
				m    transmission.Matrix
			}{
				{"Median", rob.Median},
				{"10th percentile", rob.Pct10},
				{"90th percentile", rob.Pct90},
				{"Generalized impulse response", rob.Generalized},
			} {
				s.blank()
				if err := s.title(block.name); err != nil {
					return err
				}
				if err := s.matrix(block.m, pillars); err != nil {
					return err
				}
			}
			return nil
		},
		SheetAcceleration: func(s *sheetWriter) error {
			acc := r.Acceleration
			if err := s.write("Threshold", acc.Threshold, "Normal obs", acc.NormalObs, "Stress obs", acc.StressObs); err != nil {
				return err
			}
			for _, block := range []struct {
				name string
				m    transmission.Matrix
			}{
				{"Stress / normal ratio", acc.Ratio},
				{"Normal regime", acc.Normal},
				{"Stress regime", acc.Stress},
			} {
				s.blank()
				if err := s.title(block.name); err != nil {
					return err
				}
				if err := s.matrix(block.m, pillars); err != nil {
					return err
				}
			}
			return nil
		},
		SheetCausality: func(s *sheetWriter) error {
			headers, _ := CausalityRecords(nil)
			row := make([]interface{}, len(headers))
			for i, h := range headers {
				row[i] = h
			}
			if err := s.write(row...); err != nil {
				return err
			}
			for _, c := range r.Causality {
				if err := s.write(string(c.Cause), string(c.Effect), c.FStatistic, c.PValue, c.Lags, c.Significant); err != nil {
					return err
				}
			}
			return nil
		},
		SheetInputs: func(s *sheetWriter) error {
			if err := s.write("pillar", "mean", "std_dev", "min", "max"); err != nil {
				return err
			}
			for _, in := range r.Inputs {
				if err := s.write(string(in.Pillar), in.Mean, in.StdDev, in.Min, in.Max); err != nil {
					return err
				}
			}
			return nil
		},
	}

	for _, name := range sheets {
		s := &sheetWriter{f: f, sheet: name, header: header}
		if err := writers[name](s); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
		if err := f.SetColWidth(name, "A", "A", 22); err != nil {
			return fmt.Errorf("failed to size sheet %s: %w", name, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
