package transmission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveReportJSON writes the structured report as indented JSON
func SaveReportJSON(r *Report, outputPath string) error {
	if r == nil {
		return fmt.Errorf("no report to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// LoadReportJSON reads a report written by SaveReportJSON
func LoadReportJSON(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	var r Report
	if err := json.NewDecoder(file).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// SaveTextReport writes the text rendering of a report
func SaveTextReport(r *Report, outputPath string) error {
	if r == nil {
		return fmt.Errorf("no report to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create text file: %w", err)
	}
	defer file.Close()

	WriteReport(file, r)
	return nil
}
