package contracts

import (
	"fmt"
	"runtime"
)

const (
	Version = "1.0.0"

	// ReportFormatVersion tags the persisted report JSON layout
	ReportFormatVersion = "v1"

	APIVersion = "v1"
)

// Set with -ldflags "-X macpulse/pkg/contracts.BuildTime=... -X macpulse/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
	ReportFormat string `json:"report_format"`
	APIVersion   string `json:"api_version"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		ReportFormat: ReportFormatVersion,
		APIVersion:   APIVersion,
	}
}

// GetVersionString returns "MAC Pulse vX.Y.Z".
func GetVersionString() string {
	return "MAC Pulse v" + Version
}

// GetFullVersionString adds build metadata for -version flags.
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("%s (commit %s, built %s, %s %s)",
		GetVersionString(), info.GitCommit, info.BuildTime, info.GoVersion, info.Platform)
}
