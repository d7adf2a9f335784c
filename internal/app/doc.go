// Package app wires the water quality dashboard server together.
//
// NewApplication loads configuration, initializes logging and OpenTelemetry,
// then builds the websocket hub, the chart registry and its sinks, the
// dashboard controller, the services and the chi router. Run starts the
// background workers and the HTTP server, performs the initial artifact
// load and blocks until an interrupt arrives.
//
// A failed initial load does not stop the server: the dashboard stays in
// the failed phase, readiness reports not_ready and browsers receive the
// load failure over the websocket.
package app
