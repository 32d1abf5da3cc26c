package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/shared/testutil"
)

type stubStatus struct{ status RunStatus }

func (s stubStatus) Status() RunStatus { return s.status }

func TestHealthService(t *testing.T) {
	paths := testutil.TempPaths(t)
	reports := stubStatus{status: RunStatus{Available: true, RunID: "run-1", GeneratedAt: time.Now()}}
	hs := NewHealthService("1.2.3", paths, reports, nil)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		status := hs.HealthCheck(ctx)
		assert.Equal(t, "ok", status.Status)
		assert.Equal(t, "1.2.3", status.Version)
	})

	t.Run("liveness", func(t *testing.T) {
		status := hs.LivenessCheck(ctx)
		assert.Equal(t, "alive", status.Status)
		assert.Contains(t, status.Runtime, "goroutines")
	})

	t.Run("readiness", func(t *testing.T) {
		status := hs.ReadinessCheck(ctx)
		assert.Equal(t, "ready", status.Status)
		assert.Equal(t, reports.status, status.Services["transmission"])

		data, ok := status.Services["data"].(ServiceHealth)
		require.True(t, ok)
		assert.Equal(t, "ready", data.Status)
	})

	t.Run("version", func(t *testing.T) {
		info := hs.Version()
		assert.Equal(t, "1.2.3", info["version"])
		assert.Contains(t, info, "go_version")
	})
}

func TestReadinessMissingDirectory(t *testing.T) {
	paths := testutil.TempPaths(t)
	require.NoError(t, os.RemoveAll(paths.ReportsDir))

	hs := NewHealthService("dev", paths, nil, testutil.QuietLogger())
	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	assert.NotContains(t, status.Services, "transmission")

	data := status.Services["data"].(ServiceHealth)
	assert.Contains(t, data.Message, paths.ReportsDir)
}

func TestReadinessWithoutPersistence(t *testing.T) {
	hs := NewHealthService("dev", nil, nil, nil)
	assert.Equal(t, "ready", hs.ReadinessCheck(context.Background()).Status)
}
