// Package websocket pushes live tracking events to connected dashboard
// clients: squawk transition alerts, coverage record updates, and periodic
// status snapshots.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

// Message types pushed to clients
const (
	MessageTypeSquawkAlert    = "squawk_alert"
	MessageTypeCoverageRecord = "coverage_record"
	MessageTypeStatusUpdate   = "status_update"
	MessageTypeFilterUpdate   = "filter_update" // client sends category preferences
)

// Message is one WebSocket frame in either direction
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// ClientFilters restricts which squawk alerts a client receives. Empty
// categories means everything.
type ClientFilters struct {
	Categories map[string]bool `json:"categories"`
}

// Client is one connected dashboard
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	filters   *ClientFilters
}

// Server is the WebSocket hub
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("web-socket"),
	}
}

// Run processes the hub channels. Call in its own goroutine.
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.mu.Lock()
				client.closed = true
				client.mu.Unlock()
				close(client.send)
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.RLock()
			var stale []*Client
			for client := range s.clients {
				client.mu.Lock()
				closed := client.closed
				client.mu.Unlock()
				if closed {
					stale = append(stale, client)
					continue
				}
				if !client.wantsMessage(message) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client
					stale = append(stale, client)
				}
			}
			s.mu.RUnlock()

			if len(stale) > 0 {
				s.mu.Lock()
				for _, client := range stale {
					if _, ok := s.clients[client]; ok {
						delete(s.clients, client)
						client.mu.Lock()
						if !client.closed {
							client.closed = true
							close(client.send)
						}
						client.mu.Unlock()
					}
				}
				s.mu.Unlock()
			}
		}
	}
}

// HandleConnection upgrades an HTTP request and runs the client pumps
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Client connected", logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, 256),
		server:    s,
		closeChan: make(chan struct{}),
	}
	s.register <- client

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for every connected client
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast queue full, dropping message",
			logger.String("message_type", message.Type))
	}
}

// SquawkAlert broadcasts one enriched squawk transition. Implements the live
// service's Alerter.
func (s *Server) SquawkAlert(rec tracker.TransitionRecord) {
	s.Broadcast(&Message{
		Type: MessageTypeSquawkAlert,
		Data: map[string]any{
			"transition": rec,
			"category":   string(tracker.Categorize(rec.From, rec.To)),
		},
	})
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.server.unregister <- c
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Error("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		if message.Type == MessageTypeFilterUpdate {
			c.applyFilterUpdate(message.Data)
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.closeChan)
	c.conn.Close()
}

// applyFilterUpdate parses and installs category preferences from a
// filter_update frame
func (c *Client) applyFilterUpdate(data map[string]any) {
	raw, ok := data["categories"]
	if !ok {
		return
	}
	categories := make(map[string]bool)
	if list, ok := raw.([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				categories[s] = true
			}
		}
	}

	c.mu.Lock()
	c.filters = &ClientFilters{Categories: categories}
	c.mu.Unlock()

	c.server.logger.Debug("Client filters updated", logger.Int("categories", len(categories)))
}

// wantsMessage applies the client's filters. Only squawk alerts are
// filterable; everything else always goes through.
func (c *Client) wantsMessage(message *Message) bool {
	if message.Type != MessageTypeSquawkAlert {
		return true
	}

	c.mu.Lock()
	filters := c.filters
	c.mu.Unlock()
	if filters == nil || len(filters.Categories) == 0 {
		return true
	}

	category, _ := message.Data["category"].(string)
	return filters.Categories[category]
}
