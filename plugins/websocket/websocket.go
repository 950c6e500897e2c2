// Package websocket is the "server:websocket" plugin: a broadcast hub of
// gorilla/websocket connections, mounted on an HTTP server or listening on
// its own port.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/httpserver"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Reference is the plugin reference of this package.
const Reference = "server:websocket"

// Type is the server type reported in ActiveServerInfo.
const Type = "websocket"

const (
	defaultPath         = "/ws"
	defaultWriteTimeout = 10 * time.Second
)

// ErrClientClosed is returned when sending to a disconnected client.
var ErrClientClosed = errors.New("websocket client closed")

// Options are read from the server's "options".
type Options struct {
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"readBufferSize"`
	WriteBufferSize int           `mapstructure:"writeBufferSize"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	// AllowedOrigins restricts the Origin header; empty means same origin only.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// SetDefaults sets default values for the Options.
func (o *Options) SetDefaults() bool {
	changed := false

	if o.Path == "" {
		o.Path = defaultPath
		changed = true
	}

	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
		changed = true
	}

	return changed
}

// Client is one connected peer.
type Client struct {
	ID string

	conn    *websocket.Conn
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Send writes a text message to the client.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))

	err := c.conn.WriteMessage(websocket.TextMessage, data)
	if err != nil {
		return fmt.Errorf("writing to %s: %w", c.ID, err)
	}

	return nil
}

func (c *Client) close(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true

	deadline := time.Now().Add(c.timeout)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	_ = c.conn.Close()
}

// ConnectHandler runs for every new client.
type ConnectHandler func(client *Client)

// MessageHandler runs for every message a client sends.
type MessageHandler func(client *Client, data []byte)

// Hub accepts websocket connections and broadcasts to them.
type Hub struct {
	host     plugin.Host
	logger   *slog.Logger
	options  Options
	raw      map[string]any
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[string]*Client
	onConnect []ConnectHandler
	onMessage []MessageHandler
	own       *httpserver.Server
	info      *plugin.ActiveServerInfo
}

var _ plugin.ServerPlugin = (*Hub)(nil)

// New is the plugin.ServerFactory of "server:websocket". A websocket server never carries an application.
func New(host plugin.Host, _ plugin.ApplicationPlugin, options map[string]any) (plugin.ServerPlugin, error) {
	opts, err := config.Decode(options, "", &Options{})
	if err != nil {
		return nil, fmt.Errorf("websocket options: %w", err)
	}

	hub := &Hub{
		host:    host,
		logger:  logging.Component(host.Logger(), Type),
		options: *opts,
		raw:     options,
		clients: make(map[string]*Client),
	}

	hub.upgrader = websocket.Upgrader{ //nolint:exhaustruct // defaults are fine
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
	}

	if len(opts.AllowedOrigins) > 0 {
		hub.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(opts.AllowedOrigins, r.Header.Get("Origin"))
		}
	}

	return hub, nil
}

// OnConnect registers a handler for new clients.
func (h *Hub) OnConnect(handler ConnectHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onConnect = append(h.onConnect, handler)
}

// OnMessage registers a handler for client messages.
func (h *Hub) OnMessage(handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onMessage = append(h.onMessage, handler)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Broadcast sends data to every connected client and returns how many received it.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))

	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0

	for _, client := range clients {
		err := client.Send(data)
		if err != nil {
			h.logger.Debug("broadcast failed", slog.String("client", client.ID), slog.Any("error", err))

			continue
		}

		sent++
	}

	return sent
}

// ServeHTTP upgrades the request and reads from the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", slog.Any("error", err))

		return
	}

	client := &Client{ID: uuid.NewString(), conn: conn, timeout: h.options.WriteTimeout}

	h.mu.Lock()
	h.clients[client.ID] = client
	onConnect := slices.Clone(h.onConnect)
	h.mu.Unlock()

	h.logger.Debug("client connected", slog.String("client", client.ID))

	for _, handler := range onConnect {
		handler(client)
	}

	defer h.remove(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		h.mu.RLock()
		onMessage := slices.Clone(h.onMessage)
		h.mu.RUnlock()

		for _, handler := range onMessage {
			handler(client, data)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()

	client.close(websocket.CloseNormalClosure)

	h.logger.Debug("client disconnected", slog.String("client", client.ID))
}

// Listen mounts the hub on the binder target or serves it on its own address.
func (h *Hub) Listen(ctx context.Context, binder plugin.Binder) (*plugin.ActiveServerInfo, error) {
	own, info, err := httpserver.Attach(ctx, h.host, binder, h.options.Path, h, h.raw)
	if err != nil {
		return nil, fmt.Errorf("websocket listen: %w", err)
	}

	info.Type = Type

	h.mu.Lock()
	h.own = own
	h.info = info
	h.mu.Unlock()

	h.logger.Info("websocket hub ready", slog.String("path", h.options.Path), slog.Int("port", info.Port))

	return info, nil
}

// Info returns the bound address, or nil before Listen.
func (h *Hub) Info() *plugin.ActiveServerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.info
}

// Close disconnects every client and stops the hub's own listener, if any.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	own := h.own
	h.mu.Unlock()

	for _, client := range clients {
		client.close(websocket.CloseGoingAway)
	}

	if own != nil {
		return own.Close(ctx)
	}

	return nil
}
