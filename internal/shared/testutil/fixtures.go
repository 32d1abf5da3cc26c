package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"macpulse/internal/config"
	"macpulse/internal/transmission"
)

// QuietLogger discards everything
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TempPaths resolves paths under a fresh temporary directory and creates them
func TempPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.ResolvePaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

// RandomWalks returns n weekly scores per pillar, each a Gaussian random
// walk from 0.5 with step 0.02 held in [0, 1]. The same seed yields the same series.
func RandomWalks(seed int64, n int) transmission.PillarSeries {
	rng := rand.New(rand.NewSource(seed))
	series := make(transmission.PillarSeries, 6)
	for _, p := range transmission.Pillars() {
		values := make([]float64, n)
		values[0] = 0.5
		for i := 1; i < n; i++ {
			values[i] = math.Min(1, math.Max(0, values[i-1]+rng.NormFloat64()*0.02))
		}
		series[p] = values
	}
	return series
}

// PillarCSV renders series as a dated pillar table starting on 2020-01-03,
// one row per week. A non-nil composite adds the mac column.
func PillarCSV(series transmission.PillarSeries, composite []float64) string {
	pillars := transmission.Pillars()

	var b strings.Builder
	b.WriteString("date")
	for _, p := range pillars {
		b.WriteString("," + string(p))
	}
	if composite != nil {
		b.WriteString(",mac")
	}
	b.WriteString("\n")

	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < series.Len(); i++ {
		b.WriteString(start.AddDate(0, 0, 7*i).Format("2006-01-02"))
		for _, p := range pillars {
			fmt.Fprintf(&b, ",%.6f", series[p][i])
		}
		if composite != nil {
			fmt.Fprintf(&b, ",%.6f", composite[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WritePillarCSV writes PillarCSV(series, composite) to dir/name
func WritePillarCSV(t *testing.T, dir, name string, series transmission.PillarSeries, composite []float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(PillarCSV(series, composite)), 0644))
	return path
}
