// Package config provides centralized configuration management for wqdash.
// It loads configuration from multiple sources, validates it, and resolves
// artifact paths relative to the executable.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern WQDASH_* for namespacing:
//
//	WQDASH_SERVER_PORT=8080
//	WQDASH_DATA_RECORDS_FILE=cleaned_water_quality_data.csv
//	WQDASH_DASHBOARD_DEFAULT_RANGE=1y
//	WQDASH_SCHEDULER_RELOAD_SPEC="@every 1h"
//	WQDASH_CONFIG=/etc/wqdash/config.yaml
//
// # Artifacts
//
// The dashboard reads three artifacts from the data directory: the cleaned
// records table, the statistics table and the narrative summary. Only the
// records table is required.
package config
