package network

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("connection closed")

// Connection wraps the WebSocket connection with additional fields
type Connection struct {
	ws        *websocket.Conn
	send      chan []byte
	logger    *log.Logger
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewConnection creates a new connection wrapper
func NewConnection(ws *websocket.Conn, logger *log.Logger) *Connection {
	if logger == nil {
		logger = log.Default()
	}
	return &Connection{
		ws:     ws,
		send:   make(chan []byte, 256), // Buffered channel for outgoing messages
		logger: logger,
	}
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// ReadPump reads messages from the WebSocket connection until it fails. Each
// pong pushes the read deadline forward.
func (c *Connection) ReadPump(h MessageHandler) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Printf("Error reading message: %v", err)
			}
			return
		}
		h.HandleMessage(c, message)
	}
}

// WritePump writes queued messages and pings the peer periodically.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, say goodbye
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a message for the client. A client that cannot keep up
// is disconnected.
func (c *Connection) SendMessage(msg interface{}) error {
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- messageBytes:
		return nil
	default:
		c.logger.Printf("send buffer full for %s, dropping client", c.RemoteAddr())
		go c.Close()
		return ErrClosed
	}
}

// Close stops the write pump. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// MessageHandler interface for handling messages
type MessageHandler interface {
	HandleMessage(conn *Connection, message []byte)
}
