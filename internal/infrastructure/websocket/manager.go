package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/infrastructure/metrics"
	"mitcstore/internal/usecase"
	"mitcstore/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Services are the chat use cases a connection drives.
type Services struct {
	Directory *usecase.SessionDirectory
	Channel   *usecase.MessageChannel
	Unread    *usecase.UnreadCounter
	AdminChat *usecase.AdminChatUseCase
}

// Client is one WebSocket connection. A participant may hold several.
type Client struct {
	ID            string
	ParticipantID entity.ParticipantID
	Profile       usecase.SessionProfile
	Conn          *websocket.Conn
	Send          chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	sessionID   string
	messagesSub *usecase.Subscription
	sessionsSub *usecase.Subscription
	inbox       *usecase.AdminInbox
}

func NewClient(conn *websocket.Conn, participant entity.ParticipantID, profile usecase.SessionProfile) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:            uuid.New().String(),
		ParticipantID: participant,
		Profile:       profile,
		Conn:          conn,
		Send:          make(chan []byte, sendBuffer),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (c *Client) IsAdmin() bool {
	return c.ParticipantID.IsAdmin()
}

// enqueue drops the frame when the client is gone or its buffer is full.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warn("WebSocket: send buffer full for client %s (%s), dropping frame", c.ID, c.ParticipantID)
		return false
	}
}

// release closes every live subscription and the send channel. Safe to call twice.
func (c *Client) release() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	messagesSub, sessionsSub, inbox := c.messagesSub, c.sessionsSub, c.inbox
	c.messagesSub, c.sessionsSub, c.inbox = nil, nil, nil
	close(c.Send)
	c.mu.Unlock()

	c.cancel()
	if messagesSub != nil {
		messagesSub.Unsubscribe()
		metrics.SubscriptionClosed()
	}
	if sessionsSub != nil {
		sessionsSub.Unsubscribe()
		metrics.SubscriptionClosed()
	}
	if inbox != nil {
		inbox.Close()
		metrics.SubscriptionClosed()
	}
}

// Manager tracks live connections per participant and routes frames to them.
type Manager struct {
	clients    map[entity.ParticipantID]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
	services   Services
	done       chan struct{}
}

func NewManager(services Services) *Manager {
	return &Manager{
		clients:    make(map[entity.ParticipantID]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		services:   services,
		done:       make(chan struct{}),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				set, ok := m.clients[client.ParticipantID]
				if !ok {
					set = make(map[*Client]struct{})
					m.clients[client.ParticipantID] = set
				}
				set[client] = struct{}{}
				m.mutex.Unlock()
				metrics.ConnectionOpened()
				logger.Info("WebSocket: client %s registered for %s", client.ID, client.ParticipantID)

			case client := <-m.Unregister:
				if m.remove(client) {
					client.release()
					metrics.ConnectionClosed()
					logger.Info("WebSocket: client %s unregistered for %s", client.ID, client.ParticipantID)
				}

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				all := m.clients
				m.clients = make(map[entity.ParticipantID]map[*Client]struct{})
				m.mutex.Unlock()
				for _, set := range all {
					for client := range set {
						client.release()
						metrics.ConnectionClosed()
					}
				}
				return
			}
		}
	}()
}

func (m *Manager) remove(client *Client) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	set, ok := m.clients[client.ParticipantID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(m.clients, client.ParticipantID)
	}
	return true
}

// ClientCount reports how many connections participant currently holds.
func (m *Manager) ClientCount(participant entity.ParticipantID) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[participant])
}

// SendToParticipant fans message out to every connection of participant.
func (m *Manager) SendToParticipant(participant entity.ParticipantID, message WSMessage) {
	payload, err := encode(message)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s message: %v", message.Type, err)
		return
	}

	m.mutex.RLock()
	targets := make([]*Client, 0, len(m.clients[participant]))
	for client := range m.clients[participant] {
		targets = append(targets, client)
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		client.enqueue(payload)
	}
}

// SendToUser sends a message to a specific signed-in user
func (m *Manager) SendToUser(userID string, message WSMessage) {
	m.SendToParticipant(entity.UserParticipant(userID), message)
}

// NotifyOrderEvent pushes order updates to the owner and to admin connections.
func (m *Manager) NotifyOrderEvent(ctx context.Context, event usecase.OrderEvent) {
	if event.Order == nil {
		return
	}
	message := newMessage(MessageTypeOrderUpdate, OrderUpdateData{
		Event: event.Type,
		From:  event.From,
		Order: event.Order,
	})
	if event.Order.UserID != "" {
		m.SendToUser(event.Order.UserID, message)
	}
	m.SendToParticipant(entity.AdminParticipant, message)
}

func encode(message WSMessage) ([]byte, error) {
	if message.Timestamp == "" {
		message.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(message)
}

// Add hands client to the manager loop. It returns false once the manager
// has shut down, in which case the caller owns the connection.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		client.release()
		return false
	}
}

// ReadPump reads frames until the connection drops, then unregisters.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
			c.release()
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for client %s: %v", c.ID, err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
