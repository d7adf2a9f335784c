// Package charts builds chart specifications from water-quality records and
// draws them onto a ChartSink.
//
// A Spec is a plain description of one chart: named series of points,
// threshold lines and axis captions. Renderers (TimeSeries, Correlation,
// Prediction, Distribution) turn records into specs without side effects.
// The Registry owns the one live chart per render target and always clears
// the previous chart before drawing its replacement.
//
// Sinks:
//   - MemorySink keeps specs in memory for the HTTP API and tests
//   - HubSink pushes chart:render and chart:clear events to websocket clients
//   - PNGSink rasterises specs with go-chart into a directory
//   - MultiSink fans out to several sinks
package charts
