package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/config"
	"macpulse/internal/dataprocessing"
	"macpulse/internal/shared/testutil"
)

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{
			name:  "two records",
			input: "scenario,as_of,predicted,realized\ncovid,2020-03-16,0.2,0.5\nsvb,2023-03-13,0.4,0.35\n",
			want:  2,
		},
		{
			name:  "header only",
			input: "scenario,as_of,predicted,realized\n",
			want:  0,
		},
		{
			name:    "wrong header",
			input:   "name,date,predicted,realized\ncovid,2020-03-16,0.2,0.5\n",
			wantErr: "expected \"scenario\"",
		},
		{
			name:    "bad date",
			input:   "scenario,as_of,predicted,realized\ncovid,16/03/2020,0.2,0.5\n",
			wantErr: "line 2: invalid as_of",
		},
		{
			name:    "bad number",
			input:   "scenario,as_of,predicted,realized\ncovid,2020-03-16,high,0.5\n",
			wantErr: "invalid predicted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := loadValidation(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}

	records, err := loadValidation(strings.NewReader("scenario,as_of,predicted,realized\ncovid, 2020-03-16, 0.2, 0.5\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "covid", records[0].Scenario)
	assert.Equal(t, time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC), records[0].AsOf)
	assert.Equal(t, 0.5, records[0].Realized)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WritePillarCSV(t, dir, "pillars.csv", testutil.RandomWalks(11, 80), nil)

	validation := filepath.Join(dir, "validation.csv")
	require.NoError(t, os.WriteFile(validation,
		[]byte("scenario,as_of,predicted,realized\ncovid,2020-03-16,0.2,0.5\n"), 0644))

	cfg := config.Default()
	cfg.Paths.BaseDir = dir
	cfg.Paths.ReportsDir = "out"
	cfg.Estimator.MaxPermutations = 6

	logger := testutil.QuietLogger()
	report, err := run(context.Background(), cfg, options{
		input:      input,
		validation: validation,
		parse:      dataprocessing.ParseOptions{},
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, report)

	require.Len(t, report.Validation, 1)
	assert.InDelta(t, 0.3, report.Validation[0].AbsError, 1e-9)

	for _, name := range []string{
		config.LatestReportJSON,
		config.LatestReportText,
		config.LatestMatrixCSV,
		config.LatestCausalityCSV,
		config.LatestWorkbook,
	} {
		assert.FileExists(t, filepath.Join(dir, "out", name))
	}
}

func TestRunDiscoversNewestTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
	testutil.WritePillarCSV(t, filepath.Join(dir, "data"), "pillars.csv", testutil.RandomWalks(12, 60), nil)

	cfg := config.Default()
	cfg.Paths.BaseDir = dir
	cfg.Estimator.MaxPermutations = 2
	cfg.Estimator.RunCausality = false

	report, err := run(context.Background(), cfg, options{}, testutil.QuietLogger())
	require.NoError(t, err)
	assert.Len(t, report.Inputs, 6)
	assert.Empty(t, report.Causality)
	assert.FileExists(t, filepath.Join(dir, "data", "reports", config.LatestReportJSON))
}

func TestRunNoTable(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()

	_, err := run(context.Background(), cfg, options{}, testutil.QuietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pillar table found")
}

func TestRunMissingInput(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()

	report, err := run(context.Background(), cfg, options{input: filepath.Join(cfg.Paths.BaseDir, "missing.csv")},
		testutil.QuietLogger())
	assert.Error(t, err)
	assert.Nil(t, report)
}
