package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wqdash/pkg/contracts/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestClient(hub *Hub) (*Client, *MockConnection) {
	conn := NewMockConnection()
	return NewClientWithConnection(hub, conn, testLogger()), conn
}

// receive decodes the next message queued for client
func receive(t *testing.T, client *Client) events.Message {
	t.Helper()
	select {
	case data, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		var msg events.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return events.Message{}
}

func TestHubStartStop(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	hub.Start()
	hub.Start()
	assert.True(t, hub.running)

	hub.Stop()
	assert.False(t, hub.running)
	hub.Stop()

	// a stopped hub does not restart and does not block publishers
	hub.Start()
	assert.False(t, hub.running)
	hub.Publish(events.Message{Type: events.MessageTypeDashboardState})
}

func TestHubRegisterSendsConnectMessage(t *testing.T) {
	hub := startHub(t)
	client, _ := newTestClient(hub)

	hub.Register(client)

	msg := receive(t, client)
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, client.ID(), data["client_id"])
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed after unregister")
}

func TestHubPublishReachesAllClients(t *testing.T) {
	hub := startHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i], _ = newTestClient(hub)
		hub.Register(clients[i])
		receive(t, clients[i])
	}

	hub.Publish(events.Message{
		Type: events.MessageTypeDashboardState,
		Data: events.StateEvent{Phase: "loading", RequestID: 7, Range: "1y", Loading: true},
	})

	for _, c := range clients {
		msg := receive(t, c)
		assert.Equal(t, events.MessageTypeDashboardState, msg.Type)
		data := msg.Data.(map[string]interface{})
		assert.Equal(t, "loading", data["phase"])
		assert.Equal(t, float64(7), data["request_id"])
	}
}

func TestHubReplaysLatestStickyMessages(t *testing.T) {
	hub := startHub(t)

	hub.PublishSticky("state", events.Message{Type: events.MessageTypeDashboardState, Data: events.StateEvent{Phase: "loading"}})
	hub.PublishSticky("chart:bod5", events.Message{Type: events.MessageTypeChartRender, Data: events.ChartEvent{Target: "bod5", Handle: 1}})
	hub.PublishSticky("state", events.Message{Type: events.MessageTypeDashboardState, Data: events.StateEvent{Phase: "ready"}})
	hub.Publish(events.Message{Type: events.MessageTypeError, Data: events.ErrorEvent{Code: "X"}})
	assert.Eventually(t, func() bool { return len(hub.broadcast) == 0 }, time.Second, time.Millisecond)

	client, _ := newTestClient(hub)
	hub.Register(client)

	assert.Equal(t, events.MessageTypeConnect, receive(t, client).Type)

	first := receive(t, client)
	assert.Equal(t, events.MessageTypeDashboardState, first.Type)
	assert.Equal(t, "ready", first.Data.(map[string]interface{})["phase"])

	second := receive(t, client)
	assert.Equal(t, events.MessageTypeChartRender, second.Type)
	assert.Equal(t, "bod5", second.Data.(map[string]interface{})["target"])

	select {
	case data := <-client.send:
		t.Fatalf("unexpected replayed message: %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubCommands(t *testing.T) {
	tests := []struct {
		name       string
		handler    CommandHandler
		raw        string
		wantError  string
		wantCalled bool
	}{
		{
			name:       "range command is dispatched",
			handler:    func(context.Context, string, events.ClientCommand) error { return nil },
			raw:        `{"type":"range:set","data":{"range":"2y"}}`,
			wantCalled: true,
		},
		{
			name:       "handler error is reported to the client",
			handler:    func(context.Context, string, events.ClientCommand) error { return errors.New("invalid time range") },
			raw:        `{"type":"range:set","data":{"range":"9y"}}`,
			wantError:  "COMMAND_FAILED",
			wantCalled: true,
		},
		{
			name:    "heartbeat is ignored",
			handler: func(context.Context, string, events.ClientCommand) error { return nil },
			raw:     `{"type":"heartbeat"}`,
		},
		{
			name:      "malformed json",
			handler:   func(context.Context, string, events.ClientCommand) error { return nil },
			raw:       `not json`,
			wantError: "INVALID_MESSAGE",
		},
		{
			name:      "no handler installed",
			raw:       `{"type":"range:set","data":{"range":"1y"}}`,
			wantError: "UNSUPPORTED_COMMAND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := startHub(t)
			client, _ := newTestClient(hub)
			hub.Register(client)
			receive(t, client)

			var got []events.ClientCommand
			var gotClient string
			if tt.handler != nil {
				hub.SetCommandHandler(func(ctx context.Context, clientID string, cmd events.ClientCommand) error {
					got = append(got, cmd)
					gotClient = clientID
					return tt.handler(ctx, clientID, cmd)
				})
			}

			hub.handleCommand(client, []byte(tt.raw))

			if tt.wantCalled {
				require.Len(t, got, 1)
				assert.Equal(t, events.MessageTypeSetRange, got[0].Type)
				assert.Equal(t, client.ID(), gotClient)
			} else {
				assert.Empty(t, got)
			}

			if tt.wantError != "" {
				msg := receive(t, client)
				assert.Equal(t, events.MessageTypeError, msg.Type)
				assert.Equal(t, tt.wantError, msg.Data.(map[string]interface{})["code"])
				return
			}
			select {
			case data := <-client.send:
				t.Fatalf("unexpected message: %s", data)
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestReadPumpDispatchesAndUnregisters(t *testing.T) {
	hub := startHub(t)
	client, conn := newTestClient(hub)

	commands := make(chan events.ClientCommand, 1)
	hub.SetCommandHandler(func(_ context.Context, _ string, cmd events.ClientCommand) error {
		commands <- cmd
		return nil
	})

	hub.Register(client)
	receive(t, client)

	conn.AddReadMessage(websocket.TextMessage, []byte("{\"type\":\"range:set\",\n\"data\":{\"range\":\"3y\"}}"), nil)
	conn.AddReadMessage(0, nil, io.EOF)

	done := make(chan struct{})
	go func() {
		client.ReadPump()
		close(done)
	}()

	select {
	case cmd := <-commands:
		var payload events.SetRangeCommand
		require.NoError(t, json.Unmarshal(cmd.Data, &payload))
		assert.Equal(t, "3y", payload.Range)
	case <-time.After(time.Second):
		t.Fatal("command not dispatched")
	}

	<-done
	assert.True(t, conn.IsClosed())
	assert.Equal(t, int64(maxMessageSize), conn.ReadLimit)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWritePumpWritesQueuedMessages(t *testing.T) {
	hub := startHub(t)
	client, conn := newTestClient(hub)

	hub.Register(client)
	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	hub.Publish(events.Message{Type: events.MessageTypeChartClear, Data: events.ChartEvent{Target: "ss"}})
	assert.Eventually(t, func() bool { return len(conn.TextMessages()) == 2 }, time.Second, 5*time.Millisecond)

	hub.Stop()
	<-done

	msgs := conn.GetWrittenMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, websocket.CloseMessage, msgs[len(msgs)-1].Type)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()

	client, _ := newTestClient(hub)
	hub.Register(client)
	receive(t, client)

	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	hub := NewHub(testLogger(), metrics)
	hub.Start()
	defer hub.Stop()

	client, _ := newTestClient(hub)
	hub.Register(client)
	receive(t, client)

	hub.Publish(events.Message{Type: events.MessageTypeDashboardState})
	receive(t, client)
	hub.handleCommand(client, []byte(`{"type":"range:set"}`))
	receive(t, client)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.connections))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.activeClients))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.messagesSent.WithLabelValues("dashboard:state")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.commands.WithLabelValues("range:set", "unsupported")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordConnection(1)
		m.recordDisconnection(0, time.Second)
		m.recordSent("x", 1)
		m.recordDropped()
		m.recordCommand("x", "ok")
	})
}

func TestHubSetKeepAlive(t *testing.T) {
	tests := []struct {
		name             string
		ping, pong       time.Duration
		wantPing, wantPong time.Duration
	}{
		{"configured", 20 * time.Second, 40 * time.Second, 20 * time.Second, 40 * time.Second},
		{"ping not below pong", time.Minute, 30 * time.Second, 27 * time.Second, 30 * time.Second},
		{"zero values", 0, 0, defaultPingPeriod, defaultPongWait},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(testLogger(), nil)
			hub.SetKeepAlive(tt.ping, tt.pong)

			client, _ := newTestClient(hub)
			assert.Equal(t, tt.wantPing, client.pingPeriod)
			assert.Equal(t, tt.wantPong, client.pongWait)
		})
	}
}
