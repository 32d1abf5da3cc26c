package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apierrors "macpulse/internal/errors"
	"macpulse/internal/transmission"
)

// dateLayouts are tried in order when a date cell is text
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01-02-06", // excelize rendering of the built-in short date format
	"02/01/2006",
	"2006-01",
}

// ParseFile parses a .csv, .xlsx or .xlsm file
func ParseFile(path string, opts ParseOptions) (*PillarTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return ParseCSV(f, opts)
	case ".xlsx", ".xlsm":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return ParseWorkbook(f, opts)
	default:
		return nil, apierrors.NewParsingError(fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil).
			WithContext("path", path)
	}
}

// ParseCSV parses a comma-separated pillar table
func ParseCSV(r io.Reader, opts ParseOptions) (*PillarTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apierrors.NewParsingError("malformed CSV", err)
	}
	return parseRows(rows, opts)
}

// ParseWorkbook parses one sheet of an Excel workbook
func ParseWorkbook(r io.Reader, opts ParseOptions) (*PillarTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apierrors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apierrors.NewParsingError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apierrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	slog.Debug("Read workbook sheet", slog.String("sheet", sheet), slog.Int("rows", len(rows)))
	return parseRows(rows, opts)
}

// columnMap locates the known columns of a header row
type columnMap struct {
	date      int
	composite int
	pillars   map[transmission.Pillar]int
}

// mapColumns resolves header names to column indexes
func mapColumns(header []string) (*columnMap, error) {
	cols := &columnMap{date: -1, composite: -1, pillars: make(map[transmission.Pillar]int)}

	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case DateColumn:
			if cols.date >= 0 {
				return nil, apierrors.NewParsingError("duplicate date column", nil)
			}
			cols.date = i
		case CompositeColumn, "composite":
			if cols.composite >= 0 {
				return nil, apierrors.NewParsingError("duplicate composite column", nil)
			}
			cols.composite = i
		default:
			pillar, err := transmission.ParsePillar(name)
			if err != nil {
				continue
			}
			if _, dup := cols.pillars[pillar]; dup {
				return nil, apierrors.NewParsingError(fmt.Sprintf("duplicate column %q", name), nil)
			}
			cols.pillars[pillar] = i
		}
	}

	if cols.date < 0 {
		return nil, apierrors.NewParsingError("missing date column", nil)
	}
	var missing []string
	for _, p := range transmission.Pillars() {
		if _, ok := cols.pillars[p]; !ok {
			missing = append(missing, string(p))
		}
	}
	if len(missing) > 0 {
		return nil, apierrors.NewParsingError("missing pillar columns: "+strings.Join(missing, ", "), nil)
	}
	return cols, nil
}

// parsedRow is one data row before sorting
type parsedRow struct {
	line      int
	date      time.Time
	values    map[transmission.Pillar]float64
	composite float64
}

// parseRows turns raw rows, header first, into a sorted table
func parseRows(rows [][]string, opts ParseOptions) (*PillarTable, error) {
	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, apierrors.NewParsingError("no header row", nil)
	}

	cols, err := mapColumns(rows[start])
	if err != nil {
		return nil, err
	}

	var parsed []parsedRow
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		line := i + 1

		date, err := parseDate(cell(row, cols.date))
		if err != nil {
			return nil, apierrors.NewParsingError(fmt.Sprintf("row %d: invalid date", line), err).
				WithContext("row", line)
		}

		pr := parsedRow{line: line, date: date, values: make(map[transmission.Pillar]float64, len(cols.pillars)), composite: math.NaN()}
		for pillar, idx := range cols.pillars {
			v, err := parseScore(cell(row, idx))
			if err != nil {
				return nil, apierrors.NewParsingError(fmt.Sprintf("row %d: invalid %s score", line, pillar), err).
					WithContext("row", line).
					WithContext("column", string(pillar))
			}
			pr.values[pillar] = v
		}
		if cols.composite >= 0 {
			v, err := parseScore(cell(row, cols.composite))
			if err != nil {
				return nil, apierrors.NewParsingError(fmt.Sprintf("row %d: invalid composite score", line), err).
					WithContext("row", line)
			}
			pr.composite = v
		}
		parsed = append(parsed, pr)
	}

	if len(parsed) == 0 {
		return nil, apierrors.NewParsingError("no data rows", nil)
	}

	sort.SliceStable(parsed, func(a, b int) bool { return parsed[a].date.Before(parsed[b].date) })
	for i := 1; i < len(parsed); i++ {
		if parsed[i].date.Equal(parsed[i-1].date) {
			return nil, apierrors.NewParsingError(
				fmt.Sprintf("duplicate date %s (rows %d and %d)", parsed[i].date.Format("2006-01-02"), parsed[i-1].line, parsed[i].line), nil)
		}
	}

	table := &PillarTable{
		Dates:  make([]time.Time, len(parsed)),
		Series: make(transmission.PillarSeries, len(cols.pillars)),
	}
	for _, p := range transmission.Pillars() {
		table.Series[p] = make([]float64, len(parsed))
	}
	if cols.composite >= 0 {
		table.Composite = make([]float64, len(parsed))
	}
	for i, pr := range parsed {
		table.Dates[i] = pr.date
		for p, v := range pr.values {
			table.Series[p][i] = v
		}
		if table.Composite != nil {
			table.Composite[i] = pr.composite
		}
	}

	if opts.FillMissing {
		stats, err := NewForwardFillProcessor().Fill(table)
		if err != nil {
			return nil, err
		}
		table.Filled = stats.FilledCells
		return table, nil
	}
	if err := checkComplete(table); err != nil {
		return nil, err
	}
	return table, nil
}

// checkComplete rejects tables with empty cells
func checkComplete(t *PillarTable) error {
	for _, p := range transmission.Pillars() {
		for i, v := range t.Series[p] {
			if math.IsNaN(v) {
				return apierrors.NewParsingError(
					fmt.Sprintf("missing %s score on %s", p, t.Dates[i].Format("2006-01-02")), nil).
					WithContext("column", string(p))
			}
		}
	}
	for i, v := range t.Composite {
		if math.IsNaN(v) {
			return apierrors.NewParsingError(
				fmt.Sprintf("missing composite score on %s", t.Dates[i].Format("2006-01-02")), nil)
		}
	}
	return nil
}

// parseDate accepts text dates and Excel serial numbers
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseScore parses a numeric cell; an empty cell yields NaN
func parseScore(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// cell returns row[idx], or "" for short rows
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
