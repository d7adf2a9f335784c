// Package services implements the application layer between the HTTP and
// websocket transports and the dashboard controller.
//
// # Services
//
//	- DashboardService: range selection, reloads, chart and export access,
//	  and broadcasting of dashboard state to connected browsers
//	- HealthService: liveness, readiness and version reporting
//
// # Common Service Pattern
//
// Services depend on small interfaces so handlers and tests can substitute
// them:
//
//	ctrl := dashboard.NewController(opts)
//	svc := services.NewDashboardService(ctrl, hub, services.DashboardOptions{}, logger)
//
//	view, err := svc.SetTimeRange(ctx, "1y")
//
// # Error Handling
//
// Services return the controller's sentinel errors wrapped with context.
// The transport layer maps them to RFC 7807 problem responses.
package services
