// Package feed provides a WebSocket feed of simulation market data.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/luxfi/havven-sim/pkg/havven"
)

// Server broadcasts book snapshots and trades to subscribed WebSocket
// clients. Publishing is safe from the simulation loop: messages are
// handed to the hub goroutine over a channel.
type Server struct {
	markets *havven.MarketManager
	logger  log.Logger

	clients    map[*Client]bool
	clientsMu  sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	subscriptions map[string]map[*Client]bool
	subMu         sync.RWMutex

	messagesOut uint64
	clientCount int32
	seq         uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Client is one WebSocket connection with its subscription set.
type Client struct {
	id       string
	conn     *websocket.Conn
	server   *Server
	send     chan []byte
	channels map[string]bool
	mu       sync.RWMutex
}

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Sequence  uint64      `json:"sequence,omitempty"`
}

// BookUpdate carries a depth snapshot of one market.
type BookUpdate struct {
	Type     string              `json:"type"` // "snapshot" or "update"
	Market   string              `json:"market"`
	Snapshot havven.BookSnapshot `json:"snapshot"`
}

// TradeUpdate carries one executed trade.
type TradeUpdate struct {
	Market   string          `json:"market"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Buyer    string          `json:"buyer"`
	Seller   string          `json:"seller"`
}

// TickUpdate carries per-step aggregates for the "ticks" channel.
type TickUpdate struct {
	Tick   int64             `json:"tick"`
	Prices map[string]string `json:"prices"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer creates a feed server over the given markets.
func NewServer(markets *havven.MarketManager, logger log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		markets:       markets,
		logger:        logger.New("module", "feed"),
		clients:       make(map[*Client]bool),
		register:      make(chan *Client, 16),
		unregister:    make(chan *Client, 16),
		broadcast:     make(chan Message, 1024),
		subscriptions: make(map[string]map[*Client]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start runs the hub and serves the feed on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.wg.Add(1)
	go s.runHub()

	s.logger.Info("feed server starting", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-s.ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("feed server: %w", err)
	}
	return nil
}

// RunHub starts only the hub goroutine, for embedding the handler in an
// existing HTTP server.
func (s *Server) RunHub() {
	s.wg.Add(1)
	go s.runHub()
}

// Stop shuts the hub down and closes all client connections.
func (s *Server) Stop() {
	s.logger.Info("stopping feed server")
	s.cancel()
	s.wg.Wait()
}

// PublishBook broadcasts a depth update for one market.
func (s *Server) PublishBook(book *havven.OrderBook) {
	snap := book.Snapshot()
	s.publish(Message{
		Type:    "book",
		Channel: "book:" + book.Name(),
		Data:    BookUpdate{Type: "update", Market: book.Name(), Snapshot: snap},
	})
}

// PublishTrade broadcasts one executed trade on the named market.
func (s *Server) PublishTrade(market string, t havven.Trade) {
	s.publish(Message{
		Type:    "trade",
		Channel: "trades:" + market,
		Data: TradeUpdate{
			Market:   market,
			Price:    t.Price,
			Quantity: t.Quantity,
			Buyer:    t.Buyer,
			Seller:   t.Seller,
		},
	})
}

// PublishTick broadcasts per-step prices on the "ticks" channel.
func (s *Server) PublishTick(tick int64) {
	prices := make(map[string]string)
	for _, b := range s.markets.Books() {
		prices[b.Name()] = b.Price().String()
	}
	s.publish(Message{
		Type:    "tick",
		Channel: "ticks",
		Data:    TickUpdate{Tick: tick, Prices: prices},
	})
}

func (s *Server) publish(msg Message) {
	msg.Timestamp = time.Now().Unix()
	msg.Sequence = atomic.AddUint64(&s.seq, 1)

	select {
	case s.broadcast <- msg:
	default:
		s.logger.Warn("feed broadcast queue full, dropping message", "channel", msg.Channel)
	}
}

// runHub manages client registration and message routing.
func (s *Server) runHub() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.clientsMu.Lock()
			for client := range s.clients {
				close(client.send)
			}
			s.clients = make(map[*Client]bool)
			s.clientsMu.Unlock()
			return

		case client := <-s.register:
			s.clientsMu.Lock()
			s.clients[client] = true
			atomic.AddInt32(&s.clientCount, 1)
			s.clientsMu.Unlock()
			s.logger.Debug("client connected", "id", client.id, "total", atomic.LoadInt32(&s.clientCount))

		case client := <-s.unregister:
			s.clientsMu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				atomic.AddInt32(&s.clientCount, -1)
				s.unsubscribeAll(client)
			}
			s.clientsMu.Unlock()
			s.logger.Debug("client disconnected", "id", client.id, "total", atomic.LoadInt32(&s.clientCount))

		case message := <-s.broadcast:
			s.broadcastMessage(message)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:       fmt.Sprintf("client-%d-%d", time.Now().Unix(), time.Now().Nanosecond()),
		conn:     conn,
		server:   s,
		send:     make(chan []byte, 256),
		channels: make(map[string]bool),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()

	client.sendMessage(Message{
		Type:      "welcome",
		Data:      map[string]interface{}{"id": client.id},
		Timestamp: time.Now().Unix(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"clients":  atomic.LoadInt32(&s.clientCount),
		"messages": atomic.LoadUint64(&s.messagesOut),
	})
}

func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg json.RawMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("websocket read error", "error", err)
			}
			break
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)
			atomic.AddUint64(&c.server.messagesOut, 1)

			n := len(c.send)
			for i := 0; i < n; i++ {
				c.conn.WriteMessage(websocket.TextMessage, <-c.send)
				atomic.AddUint64(&c.server.messagesOut, 1)
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(raw json.RawMessage) {
	var msg struct {
		Type     string   `json:"type"`
		Channels []string `json:"channels"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		c.handleSubscribe(msg.Channels)
	case "unsubscribe":
		c.handleUnsubscribe(msg.Channels)
	case "ping":
		c.sendMessage(Message{Type: "pong", Timestamp: time.Now().Unix()})
	default:
		c.sendError(fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) handleSubscribe(channels []string) {
	for _, channel := range channels {
		c.mu.Lock()
		c.channels[channel] = true
		c.mu.Unlock()

		c.server.subscribe(channel, c)

		// Book channels get an immediate snapshot.
		if len(channel) > 5 && channel[:5] == "book:" {
			c.sendBookSnapshot(channel[5:])
		}
	}

	c.sendMessage(Message{
		Type:      "subscribed",
		Data:      map[string]interface{}{"channels": channels},
		Timestamp: time.Now().Unix(),
	})
}

func (c *Client) handleUnsubscribe(channels []string) {
	for _, channel := range channels {
		c.mu.Lock()
		delete(c.channels, channel)
		c.mu.Unlock()

		c.server.unsubscribe(channel, c)
	}

	c.sendMessage(Message{
		Type:      "unsubscribed",
		Data:      map[string]interface{}{"channels": channels},
		Timestamp: time.Now().Unix(),
	})
}

func (c *Client) sendBookSnapshot(market string) {
	for _, b := range c.server.markets.Books() {
		if b.Name() != market {
			continue
		}
		c.sendMessage(Message{
			Type:      "book",
			Channel:   "book:" + market,
			Data:      BookUpdate{Type: "snapshot", Market: market, Snapshot: b.Snapshot()},
			Timestamp: time.Now().Unix(),
		})
		return
	}
	c.sendError(fmt.Sprintf("unknown market: %s", market))
}

func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.server.logger.Error("failed to marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.server.unregister <- c
	}
}

func (c *Client) sendError(message string) {
	c.sendMessage(Message{
		Type:      "error",
		Data:      map[string]interface{}{"message": message},
		Timestamp: time.Now().Unix(),
	})
}

func (s *Server) subscribe(channel string, client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subscriptions[channel] == nil {
		s.subscriptions[channel] = make(map[*Client]bool)
	}
	s.subscriptions[channel][client] = true
}

func (s *Server) unsubscribe(channel string, client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if clients, ok := s.subscriptions[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.subscriptions, channel)
		}
	}
}

// unsubscribeAll must be called with clientsMu held.
func (s *Server) unsubscribeAll(client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for channel, clients := range s.subscriptions {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.subscriptions, channel)
		}
	}
}

func (s *Server) broadcastMessage(msg Message) {
	// Copy the subscriber set under the lock; readPump goroutines
	// mutate the map through subscribe/unsubscribe.
	s.subMu.RLock()
	clients := make([]*Client, 0, len(s.subscriptions[msg.Channel]))
	for client := range s.subscriptions[msg.Channel] {
		clients = append(clients, client)
	}
	s.subMu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
			atomic.AddUint64(&s.messagesOut, 1)
		default:
			s.unregister <- client
		}
	}
}

// Stats returns client and message counters.
func (s *Server) Stats() map[string]interface{} {
	s.subMu.RLock()
	numChannels := len(s.subscriptions)
	s.subMu.RUnlock()

	return map[string]interface{}{
		"clients":       atomic.LoadInt32(&s.clientCount),
		"messages_sent": atomic.LoadUint64(&s.messagesOut),
		"channels":      numChannels,
	}
}
