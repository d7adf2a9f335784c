package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wqdash/internal/infrastructure"
)

const (
	writeWait         = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = defaultPongWait * 9 / 10

	// Commands are tiny JSON objects
	maxMessageSize = 512

	sendBuffer = 256
)

// Client is one browser connection. The hub owns its send channel; the two
// pumps own the connection.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	pingPeriod  time.Duration
	pongWait    time.Duration

	logger *slog.Logger

	sent     int64
	received int64
}

// NewClient wraps a websocket connection. traceID is the request id of
// the upgrade request and may be empty.
func NewClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id))
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	addr := ""
	if a := conn.RemoteAddr(); a != nil {
		addr = a.String()
	}
	ping, pong := hub.keepAlive()

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  addr,
		connectedAt: time.Now(),
		pingPeriod:  ping,
		pongWait:    pong,
		logger:      logger,
	}
}

// NewClientWithConnection is NewClient without a trace id
func NewClientWithConnection(hub *Hub, conn Connection, logger *slog.Logger) *Client {
	return NewClient(hub, conn, "", logger)
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	if c.traceID == "" {
		return context.Background()
	}
	return infrastructure.WithTraceID(context.Background(), c.traceID)
}

// ReadPump forwards client commands to the hub until the connection fails,
// then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger.InfoContext(c.context(), "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.received))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.context(), "Unexpected WebSocket close",
					slog.String("error", err.Error()))
			}
			return
		}
		c.received++
		c.hub.handleCommand(c, bytes.TrimSpace(bytes.ReplaceAll(message, []byte{'\n'}, []byte{' '})))
	}
}

// WritePump drains the send channel onto the connection and keeps it alive
// with pings. A closed send channel ends the session with a close frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.DebugContext(c.context(), "WebSocket write pump stopped",
			slog.Int64("messages_sent", c.sent))
	}()

	write := func(messageType int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, []byte{})
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				c.logger.WarnContext(c.context(), "WebSocket write failed",
					slog.String("error", err.Error()))
				return
			}
			c.sent++

		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "WebSocket ping failed",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// ServeWS registers a client for an upgraded connection and starts its pumps
func ServeWS(hub *Hub, conn *websocket.Conn, traceID string, logger *slog.Logger) *Client {
	client := NewClient(hub, conn, traceID, logger)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return client
}
