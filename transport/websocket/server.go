package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gameroom-backend/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 64
)

type protocolHandler interface {
	HandleMessage(connID string, raw []byte) []protocol.Directed
	Disconnect(connID string) []protocol.Directed
}

// Server - WebSocket endpoint plus the connection registry. Each connection
// gets a transport-assigned id, a reader goroutine feeding the protocol
// handler, and a buffered writer goroutine.
type Server struct {
	logger   *slog.Logger
	handler  protocolHandler
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func New(logger *slog.Logger, handler protocolHandler) *Server {
	return &Server{
		logger:  logger.With("component", "websocket"),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Start - serves the /ws endpoint until the context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ConnectionCount - number of live connections, for the status endpoints.
func (that *Server) ConnectionCount() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients)
}

func (that *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveWS")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	that.mu.Lock()
	that.clients[c.id] = c
	that.mu.Unlock()

	log.Info("connection established", "connID", c.id)

	go that.writePump(c)
	that.readPump(c)
}

// readPump - feeds inbound frames into the protocol handler and delivers the
// resulting fan-out. Runs until the connection dies.
func (that *Server) readPump(c *client) {
	defer that.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				that.logger.Warn("unexpected close", "connID", c.id, "error", err)
			}
			return
		}

		that.deliver(that.handler.HandleMessage(c.id, raw))
	}
}

func (that *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect - unregisters the connection and runs the protocol teardown,
// broadcasting departure snapshots to rooms the connection belonged to.
func (that *Server) disconnect(c *client) {
	that.mu.Lock()
	delete(that.clients, c.id)
	c.once.Do(func() { close(c.send) })
	that.mu.Unlock()

	that.deliver(that.handler.Disconnect(c.id))

	that.logger.Info("connection closed", "connID", c.id)
}

// deliver - fans directed messages out to their recipients. A recipient whose
// send buffer is full is skipped rather than allowed to stall the sender.
func (that *Server) deliver(out []protocol.Directed) {
	for _, directed := range out {
		data := mustEncode(directed.Message)

		// Sends stay under the registry lock so they never race the channel
		// close on disconnect.
		that.mu.RLock()
		for _, connID := range directed.To {
			c, ok := that.clients[connID]
			if !ok {
				continue
			}

			select {
			case c.send <- data:
			default:
				that.logger.Warn("send buffer full, dropping message", "connID", connID)
			}
		}
		that.mu.RUnlock()
	}
}

func mustEncode(msg protocol.Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}

	return data
}
