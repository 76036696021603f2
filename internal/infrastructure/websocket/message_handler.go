package websocket

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/infrastructure/metrics"
	"mitcstore/internal/usecase"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
)

// Client -> server
const (
	MessageTypePing           = "ping"
	MessageTypeOpenChat       = "open_chat"
	MessageTypeSendMessage    = "send_message"
	MessageTypeMarkRead       = "mark_read"
	MessageTypeSelectSession  = "select_session"
	MessageTypeSearch         = "search"
	MessageTypeResolveSession = "resolve_session"
)

// Server -> client
const (
	MessageTypePong        = "pong"
	MessageTypeSession     = "session"
	MessageTypeSessions    = "sessions"
	MessageTypeMessages    = "messages"
	MessageTypeMessageSent = "message_sent"
	MessageTypeUnread      = "unread"
	MessageTypeOrderUpdate = "order_update"
	MessageTypeError       = "error"
)

type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type OpenChatData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SendMessageData struct {
	TempID    string `json:"temp_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type SessionRefData struct {
	SessionID string `json:"session_id"`
}

type SearchData struct {
	Query string `json:"query"`
}

type MessagesData struct {
	SessionID string            `json:"session_id"`
	Messages  []*entity.Message `json:"messages"`
}

type MessageSentData struct {
	TempID  string          `json:"temp_id,omitempty"`
	Message *entity.Message `json:"message"`
}

type UnreadData struct {
	Count int `json:"count"`
}

type OrderUpdateData struct {
	Event usecase.OrderEventType `json:"event"`
	From  entity.OrderStatus     `json:"from,omitempty"`
	Order *entity.Order          `json:"order"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TempID  string `json:"temp_id,omitempty"`
}

func newMessage(messageType string, data interface{}) WSMessage {
	return WSMessage{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage
	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		logger.Warn("WebSocket: failed to unmarshal message from client %s: %v", client.ID, err)
		m.sendErrorToClient(client, errors.BadRequest("Invalid message format", err), "")
		return
	}

	logger.Debug("WebSocket: received '%s' from %s", wsMessage.Type, client.ParticipantID)

	switch wsMessage.Type {
	case MessageTypePing:
		m.sendToClient(client, newMessage(MessageTypePong, map[string]string{"status": "alive"}))

	case MessageTypeOpenChat:
		m.handleOpenChat(client, wsMessage.Data)

	case MessageTypeSendMessage:
		m.handleSendMessage(client, wsMessage.Data)

	case MessageTypeMarkRead:
		m.handleMarkRead(client, wsMessage.Data)

	case MessageTypeSelectSession:
		m.handleSelectSession(client, wsMessage.Data)

	case MessageTypeSearch:
		m.handleSearch(client, wsMessage.Data)

	case MessageTypeResolveSession:
		m.handleResolveSession(client, wsMessage.Data)

	default:
		logger.Warn("WebSocket: unknown message type '%s' from client %s", wsMessage.Type, client.ID)
		m.sendErrorToClient(client, errors.BadRequest("Unknown message type", nil), "")
	}
}

// handleOpenChat attaches a counterpart to their session, or an admin to the inbox.
func (m *Manager) handleOpenChat(client *Client, data interface{}) {
	if client.IsAdmin() {
		if _, err := m.ensureInbox(client); err != nil {
			m.sendErrorToClient(client, err, "")
		}
		return
	}

	var open OpenChatData
	if data != nil {
		if err := decodeData(data, &open); err != nil {
			m.sendErrorToClient(client, errors.BadRequest("Invalid open_chat data", err), "")
			return
		}
	}
	profile := client.Profile
	if open.Name != "" {
		profile.Name = open.Name
	}
	if open.Email != "" {
		profile.Email = open.Email
	}

	session, err := m.services.Directory.GetOrCreate(client.ctx, client.ParticipantID, profile)
	if err != nil {
		m.sendErrorToClient(client, err, "")
		return
	}

	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		return
	}
	previousMessages, previousSessions := client.messagesSub, client.sessionsSub
	client.messagesSub, client.sessionsSub = nil, nil
	client.sessionID = session.ID
	client.mu.Unlock()

	if previousMessages != nil {
		previousMessages.Unsubscribe()
		metrics.SubscriptionClosed()
	}
	if previousSessions != nil {
		previousSessions.Unsubscribe()
		metrics.SubscriptionClosed()
	}

	m.sendToClient(client, newMessage(MessageTypeSession, session))

	sessionID := session.ID
	messagesSub, err := m.services.Channel.Subscribe(client.ctx, sessionID, func(messages []*entity.Message, err error) {
		if err != nil {
			m.sendErrorToClient(client, err, "")
			return
		}
		m.sendToClient(client, newMessage(MessageTypeMessages, MessagesData{SessionID: sessionID, Messages: messages}))
	})
	if err != nil {
		m.sendErrorToClient(client, err, "")
		return
	}

	participant := client.ParticipantID
	sessionsSub, err := m.services.Directory.ListForParticipant(client.ctx, participant, func(sessions []*entity.Session, err error) {
		if err != nil {
			m.sendErrorToClient(client, err, "")
			return
		}
		m.sendToClient(client, newMessage(MessageTypeUnread, UnreadData{Count: usecase.SumUnread(sessions, participant)}))
	})
	if err != nil {
		messagesSub.Unsubscribe()
		m.sendErrorToClient(client, err, "")
		return
	}

	if !client.adopt(messagesSub, sessionsSub) {
		messagesSub.Unsubscribe()
		sessionsSub.Unsubscribe()
		return
	}
	metrics.SubscriptionOpened()
	metrics.SubscriptionOpened()
}

// adopt stores fresh subscriptions unless the client went away meanwhile.
func (c *Client) adopt(messagesSub, sessionsSub *usecase.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.messagesSub = messagesSub
	c.sessionsSub = sessionsSub
	return true
}

func (m *Manager) handleSendMessage(client *Client, data interface{}) {
	var send SendMessageData
	if err := decodeData(data, &send); err != nil {
		m.sendErrorToClient(client, errors.BadRequest("Invalid send_message data", err), "")
		return
	}

	var (
		message *entity.Message
		err     error
	)
	if client.IsAdmin() {
		sessionID := send.SessionID
		if sessionID == "" {
			if inbox := client.currentInbox(); inbox != nil {
				sessionID = inbox.Selected()
			}
		}
		if sessionID == "" {
			m.sendErrorToClient(client, errors.BadRequest("session_id is required", nil), send.TempID)
			return
		}
		message, err = m.services.AdminChat.Send(client.ctx, sessionID, send.Message)
	} else {
		sessionID := send.SessionID
		if sessionID == "" {
			sessionID = client.currentSession()
		}
		if sessionID == "" {
			m.sendErrorToClient(client, errors.BadRequest("Open a chat before sending messages", nil), send.TempID)
			return
		}
		message, err = m.services.Channel.Send(client.ctx, sessionID, client.ParticipantID, send.Message)
	}

	if err != nil {
		m.sendErrorToClient(client, err, send.TempID)
		return
	}
	m.sendToClient(client, newMessage(MessageTypeMessageSent, MessageSentData{TempID: send.TempID, Message: message}))
}

func (m *Manager) handleMarkRead(client *Client, data interface{}) {
	var ref SessionRefData
	if data != nil {
		if err := decodeData(data, &ref); err != nil {
			m.sendErrorToClient(client, errors.BadRequest("Invalid mark_read data", err), "")
			return
		}
	}

	var err error
	switch {
	case client.IsAdmin() && ref.SessionID != "":
		err = m.services.AdminChat.MarkRead(client.ctx, ref.SessionID)
	case client.IsAdmin():
		inbox := client.currentInbox()
		if inbox == nil {
			err = errors.BadRequest("No chat session selected", nil)
			break
		}
		err = inbox.MarkRead(client.ctx)
	default:
		sessionID := ref.SessionID
		if sessionID == "" {
			sessionID = client.currentSession()
		}
		if sessionID == "" {
			err = errors.BadRequest("Open a chat first", nil)
			break
		}
		err = m.services.Unread.MarkRead(client.ctx, sessionID, client.ParticipantID)
	}
	if err != nil {
		m.sendErrorToClient(client, err, "")
	}
}

func (m *Manager) handleSelectSession(client *Client, data interface{}) {
	if !m.requireAdmin(client) {
		return
	}
	var ref SessionRefData
	if err := decodeData(data, &ref); err != nil || ref.SessionID == "" {
		m.sendErrorToClient(client, errors.BadRequest("session_id is required", err), "")
		return
	}

	inbox, err := m.ensureInbox(client)
	if err != nil {
		m.sendErrorToClient(client, err, "")
		return
	}
	if err := inbox.Select(client.ctx, ref.SessionID); err != nil {
		m.sendErrorToClient(client, err, "")
	}
}

func (m *Manager) handleSearch(client *Client, data interface{}) {
	if !m.requireAdmin(client) {
		return
	}
	var search SearchData
	if data != nil {
		if err := decodeData(data, &search); err != nil {
			m.sendErrorToClient(client, errors.BadRequest("Invalid search data", err), "")
			return
		}
	}

	inbox, err := m.ensureInbox(client)
	if err != nil {
		m.sendErrorToClient(client, err, "")
		return
	}
	inbox.SetFilter(search.Query)
}

func (m *Manager) handleResolveSession(client *Client, data interface{}) {
	if !m.requireAdmin(client) {
		return
	}
	var ref SessionRefData
	if err := decodeData(data, &ref); err != nil || ref.SessionID == "" {
		m.sendErrorToClient(client, errors.BadRequest("session_id is required", err), "")
		return
	}
	if err := m.services.AdminChat.Resolve(client.ctx, ref.SessionID); err != nil {
		m.sendErrorToClient(client, err, "")
	}
}

func (m *Manager) requireAdmin(client *Client) bool {
	if client.IsAdmin() {
		return true
	}
	m.sendErrorToClient(client, errors.Forbidden("Admin privileges required", nil), "")
	return false
}

// ensureInbox opens the admin inbox on first use and returns it.
func (m *Manager) ensureInbox(client *Client) (*usecase.AdminInbox, error) {
	if inbox := client.currentInbox(); inbox != nil {
		return inbox, nil
	}

	inbox, err := m.services.AdminChat.OpenInbox(client.ctx, usecase.InboxHandlers{
		OnSessions: func(sessions []*usecase.AdminSessionView) {
			m.sendToClient(client, newMessage(MessageTypeSessions, sessions))
		},
		OnMessages: func(sessionID string, messages []*entity.Message) {
			m.sendToClient(client, newMessage(MessageTypeMessages, MessagesData{SessionID: sessionID, Messages: messages}))
		},
		OnError: func(err error) {
			m.sendErrorToClient(client, err, "")
		},
	})
	if err != nil {
		return nil, err
	}

	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		inbox.Close()
		return nil, errors.BadRequest("Connection closed", nil)
	}
	if client.inbox != nil {
		existing := client.inbox
		client.mu.Unlock()
		inbox.Close()
		return existing, nil
	}
	client.inbox = inbox
	client.mu.Unlock()
	metrics.SubscriptionOpened()
	return inbox, nil
}

func (c *Client) currentInbox() *usecase.AdminInbox {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inbox
}

func (c *Client) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (m *Manager) sendToClient(client *Client, message WSMessage) {
	payload, err := encode(message)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s message: %v", message.Type, err)
		return
	}
	client.enqueue(payload)
}

func (m *Manager) sendErrorToClient(client *Client, err error, tempID string) {
	data := ErrorData{Code: errors.CodeInternal, Message: "An unexpected error occurred", TempID: tempID}
	if appErr, ok := asAppError(err); ok {
		data.Code = appErr.Code
		data.Message = appErr.Message
	} else {
		logger.Error("WebSocket: client %s: %v", client.ID, err)
	}
	m.sendToClient(client, newMessage(MessageTypeError, data))
}

func asAppError(err error) (*errors.AppError, bool) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func decodeData(data interface{}, v interface{}) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(dataBytes, v)
}
