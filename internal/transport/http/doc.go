// Package http implements the HTTP handlers of the dashboard API. Handlers
// stay thin: they parse and validate the request, delegate to a service and
// render the result or an RFC 7807 problem.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Controller
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Routes
//
//	/api/v1/dashboard   DashboardHandler.Routes
//	/healthz /readyz    HealthHandler
//	/metrics            MetricsHandler
//	/                   ServeIndex
package http
