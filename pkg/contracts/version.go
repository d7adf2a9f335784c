// Package contracts holds the types shared between the server, the
// report command and browser clients.
package contracts

import "runtime"

const (
	// DataFormatVersion identifies the layout of the cleaned artifacts
	DataFormatVersion = "v1"

	// APIVersion is the version of the HTTP and websocket contracts
	APIVersion = "v1"
)

// Set with -ldflags "-X wqdash/pkg/contracts.BuildTime=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version    string `json:"version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	DataFormat string `json:"data_format"`
	API        string `json:"api_version"`
}

// Build returns the build information for an application version
func Build(version string) BuildInfo {
	return BuildInfo{
		Version:    version,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		DataFormat: DataFormatVersion,
		API:        APIVersion,
	}
}
