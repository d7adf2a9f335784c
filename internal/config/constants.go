package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "wqdash"
	AppVersion = "1.0.0"

	// Artifact fallbacks use the same base name with this extension
	SpreadsheetExtension = ".xlsx"

	// Default export file name prefix; the active range is appended
	ExportFilePrefix = "water_quality"

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir = "data"
	DefaultLogsDir = "logs"

	// Message shown when the initial load fails
	LoadFailureMessage = "Failed to load data. Please refresh the page."
)
