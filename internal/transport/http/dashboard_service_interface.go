package http

import (
	"context"
	"io"

	"wqdash/internal/charts"
	"wqdash/internal/dashboard"
	apiv1 "wqdash/pkg/contracts/api/v1"
)

// DashboardServiceInterface is what DashboardHandler needs from the
// dashboard service. *services.DashboardService implements it.
type DashboardServiceInterface interface {
	State() apiv1.StateResponse
	Ranges() []apiv1.RangeOption
	View() (*dashboard.ViewModel, error)
	SetTimeRange(ctx context.Context, raw string) (*dashboard.ViewModel, error)
	Reload(ctx context.Context) (*dashboard.ViewModel, error)
	Chart(target string) (charts.Spec, error)
	RenderChartPNG(ctx context.Context, target string, w io.Writer) error
	Export(ctx context.Context, rangeOverride string, w io.Writer) (string, error)
	ExportWorkbook(ctx context.Context, rangeOverride string, w io.Writer) (string, error)
	Insights() (*dashboard.Insights, error)
	Assets(ctx context.Context) ([]apiv1.Asset, error)
}
