// Package events contains the message contracts exchanged with dashboard
// browsers over the websocket channel.
package events

import (
	"encoding/json"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Server to client
	MessageTypeConnect        MessageType = "connect"
	MessageTypeDashboardState MessageType = "dashboard:state"
	MessageTypeDashboardView  MessageType = "dashboard:view"
	MessageTypeChartRender    MessageType = "chart:render"
	MessageTypeChartClear     MessageType = "chart:clear"
	MessageTypeError          MessageType = "error"

	// Client to server
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeSetRange  MessageType = "range:set"
	MessageTypeReload    MessageType = "dashboard:reload"
)

// Message is the envelope of every server message
type Message struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ConnectEvent greets a newly registered client
type ConnectEvent struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// StateEvent reports a dashboard phase transition. Loading is true while
// the loading indicator should be visible.
type StateEvent struct {
	Phase     string `json:"phase"`
	RequestID uint64 `json:"request_id"`
	Range     string `json:"range"`
	Loading   bool   `json:"loading"`
	Message   string `json:"message,omitempty"`
}

// ChartEvent carries a chart spec for one render target
type ChartEvent struct {
	Target string      `json:"target"`
	Handle uint64      `json:"handle"`
	Spec   interface{} `json:"spec,omitempty"`
}

// ErrorEvent reports a failure the user should see
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// ClientCommand is a message sent by a browser
type ClientCommand struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SetRangeCommand asks the dashboard to switch time range
type SetRangeCommand struct {
	Range string `json:"range" validate:"required,oneof=all 1y 2y 3y"`
}
