package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wqdash/internal/infrastructure"
	"wqdash/pkg/contracts/events"
)

const broadcastBuffer = 256

// outbound is an encoded message queued for delivery. A non-empty key marks
// the message sticky.
type outbound struct {
	key     string
	msgType events.MessageType
	data    []byte
}

// direct is a message for a single client
type direct struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to the
// clients. Only the Run goroutine touches client send channels.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan outbound

	// Outbound messages for one client
	direct chan direct

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Latest sticky messages replayed to new clients in first-seen order
	sticky      map[string][]byte
	stickyOrder []string

	mu      sync.RWMutex
	handler CommandHandler

	logger  *slog.Logger
	metrics *Metrics

	// Keep-alive timings handed to new clients
	pingPeriod time.Duration
	pongWait   time.Duration

	// Control
	quit    chan struct{}
	done    chan struct{}
	running bool
	stopped bool
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastBuffer),
		direct:     make(chan direct, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sticky:     make(map[string][]byte),
		logger:     logger,
		metrics:    metrics,
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start starts the hub's main loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop closes every client and waits for the main loop to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.stopped = true
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

// SetKeepAlive sets the ping period and pong deadline for clients that
// register afterwards. A ping period not shorter than the pong deadline is
// clamped to nine tenths of it.
func (h *Hub) SetKeepAlive(pingPeriod, pongWait time.Duration) {
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = pongWait * 9 / 10
	}
	h.mu.Lock()
	h.pingPeriod, h.pongWait = pingPeriod, pongWait
	h.mu.Unlock()
}

func (h *Hub) keepAlive() (time.Duration, time.Duration) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pingPeriod, h.pongWait
}

// SetCommandHandler installs the handler for client commands
func (h *Hub) SetCommandHandler(handler CommandHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.setCount()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.recordConnection(count)

			ctx := client.context()
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.deliver(client, h.connectMessage(client))
			for _, key := range h.stickyOrder {
				h.deliver(client, h.sticky[key])
			}

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.direct:
			if h.clients[d.client] {
				h.deliver(d.client, d.data)
			}

		case out := <-h.broadcast:
			if out.key != "" {
				if _, seen := h.sticky[out.key]; !seen {
					h.stickyOrder = append(h.stickyOrder, out.key)
				}
				h.sticky[out.key] = out.data
			}

			sent := 0
			for client := range h.clients {
				select {
				case client.send <- out.data:
					sent++
				default:
					h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
					h.metrics.recordDropped()
					h.remove(client)
				}
			}
			h.metrics.recordSent(string(out.msgType), sent)

			h.logger.Debug("Broadcast message",
				slog.String("type", string(out.msgType)),
				slog.Int("client_count", sent),
				slog.Int("message_size", len(out.data)))
		}
	}
}

// remove drops a client and closes its send channel. Run goroutine only.
func (h *Hub) remove(client *Client) {
	if !h.clients[client] {
		return
	}
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	close(client.send)
	count := h.setCount()
	h.metrics.recordDisconnection(count, time.Since(client.connectedAt))

	h.logger.InfoContext(client.context(), "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

func (h *Hub) setCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := len(h.clients)
	if h.metrics != nil {
		h.metrics.activeClients.Set(float64(count))
	}
	return count
}

// deliver queues data without blocking. Run goroutine only.
func (h *Hub) deliver(client *Client, data []byte) {
	if data == nil {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(client.context(), "Failed to queue message - client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) connectMessage(client *Client) []byte {
	data, err := h.encode(events.Message{
		Type:    events.MessageTypeConnect,
		TraceID: client.traceID,
		Data: events.ConnectEvent{
			ClientID: client.id,
			Status:   "connected",
			Message:  "Connected to water quality dashboard",
		},
	})
	if err != nil {
		return nil
	}
	return data
}

// encode stamps and marshals a message
func (h *Hub) encode(msg events.Message) ([]byte, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msg.Type)))
		return nil, err
	}
	return data, nil
}

// Publish sends a message to every connected client
func (h *Hub) Publish(msg events.Message) {
	h.enqueue("", msg)
}

// PublishSticky sends a message and keeps the latest one per key for
// clients that connect later
func (h *Hub) PublishSticky(key string, msg events.Message) {
	h.enqueue(key, msg)
}

func (h *Hub) enqueue(key string, msg events.Message) {
	data, err := h.encode(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- outbound{key: key, msgType: msg.Type, data: data}:
	case <-h.quit:
	}
}

// sendTo queues a message for a single client
func (h *Hub) sendTo(client *Client, msg events.Message) {
	data, err := h.encode(msg)
	if err != nil {
		return
	}
	select {
	case h.direct <- direct{client: client, data: data}:
	case <-h.quit:
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleCommand decodes and dispatches one client message
func (h *Hub) handleCommand(client *Client, raw []byte) {
	ctx := client.context()

	var cmd events.ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type == "" {
		h.metrics.recordCommand("unknown", "invalid")
		h.logger.WarnContext(ctx, "Invalid client message",
			slog.String("client_id", client.id),
			slog.Int("size", len(raw)))
		h.sendTo(client, errorMessage(client, "INVALID_MESSAGE", "Message must be a JSON object with a type"))
		return
	}

	if cmd.Type == events.MessageTypeHeartbeat {
		h.logger.DebugContext(ctx, "Heartbeat received", slog.String("client_id", client.id))
		return
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		h.metrics.recordCommand(string(cmd.Type), "unsupported")
		h.sendTo(client, errorMessage(client, "UNSUPPORTED_COMMAND", "Unsupported command: "+string(cmd.Type)))
		return
	}

	if err := handler(ctx, client.id, cmd); err != nil {
		h.metrics.recordCommand(string(cmd.Type), "error")
		h.logger.WarnContext(ctx, "Client command failed",
			slog.String("client_id", client.id),
			slog.String("type", string(cmd.Type)),
			slog.String("error", err.Error()))
		h.sendTo(client, errorMessage(client, "COMMAND_FAILED", err.Error()))
		return
	}
	h.metrics.recordCommand(string(cmd.Type), "ok")
}

func errorMessage(client *Client, code, message string) events.Message {
	return events.Message{
		Type:    events.MessageTypeError,
		TraceID: client.traceID,
		Data:    events.ErrorEvent{Code: code, Message: message},
	}
}
