package charts

import (
	"context"

	"wqdash/internal/websocket"
	"wqdash/pkg/contracts/events"
)

// HubSink pushes charts to dashboard browsers. The latest event of each
// target is kept sticky so late joiners see the current chart.
type HubSink struct {
	publisher websocket.Publisher
}

// NewHubSink creates a sink publishing through p
func NewHubSink(p websocket.Publisher) *HubSink {
	return &HubSink{publisher: p}
}

func stickyKey(target string) string {
	return "chart:" + target
}

// Render implements ChartSink
func (h *HubSink) Render(ctx context.Context, target string, spec Spec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.publisher.PublishSticky(stickyKey(target), events.Message{
		Type: events.MessageTypeChartRender,
		Data: events.ChartEvent{Target: target, Handle: spec.Revision, Spec: spec},
	})
	return nil
}

// Clear implements ChartSink
func (h *HubSink) Clear(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.publisher.PublishSticky(stickyKey(target), events.Message{
		Type: events.MessageTypeChartClear,
		Data: events.ChartEvent{Target: target},
	})
	return nil
}
