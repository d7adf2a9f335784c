package websocket

import (
	"context"
	"net"
	"time"

	"wqdash/pkg/contracts/events"
)

// Connection is the subset of *websocket.Conn a client drives. Tests
// substitute MockConnection.
type Connection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Publisher is the write side of the hub used by dashboard components
type Publisher interface {
	// Publish sends a message to every connected client
	Publish(msg events.Message)

	// PublishSticky sends a message and keeps it under key so that clients
	// connecting later receive the latest value
	PublishSticky(key string, msg events.Message)
}

// CommandHandler processes a command sent by a client. A returned error is
// reported back to that client only.
type CommandHandler func(ctx context.Context, clientID string, cmd events.ClientCommand) error
