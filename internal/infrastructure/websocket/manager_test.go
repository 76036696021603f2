package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mitcstore/internal/adapter/repository"
	"mitcstore/internal/domain/entity"
	domainrepo "mitcstore/internal/domain/repository"
	"mitcstore/internal/usecase"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type hubEnv struct {
	store   *repository.MemoryDocumentStore
	manager *Manager
	server  *httptest.Server
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()

	store := repository.NewMemoryDocumentStore()
	sessions := repository.NewSessionRepository(store)
	messages := repository.NewMessageRepository(store)
	users := repository.NewUserRepository(store)

	directory := usecase.NewSessionDirectory(sessions)
	channel := usecase.NewMessageChannel(directory, sessions, messages, nil)
	unread := usecase.NewUnreadCounter(sessions)

	manager := NewManager(Services{
		Directory: directory,
		Channel:   channel,
		Unread:    unread,
		AdminChat: usecase.NewAdminChatUseCase(directory, channel, unread, users),
	})
	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, entity.ParticipantID(r.URL.Query().Get("as")), usecase.SessionProfile{})
		if !manager.Add(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump(manager)
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &hubEnv{store: store, manager: manager, server: server}
}

func (e *hubEnv) dial(t *testing.T, participant entity.ParticipantID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/?as=" + string(participant)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return e.manager.ClientCount(participant) > 0
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, messageType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{Type: messageType, Data: data}))
}

// readUntil returns the first frame accepted by match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func ofType(messageType string) func(frame) bool {
	return func(f frame) bool { return f.Type == messageType }
}

func TestPingPong(t *testing.T) {
	env := newHubEnv(t)
	conn := env.dial(t, entity.GuestParticipant("g1"))

	send(t, conn, MessageTypePing, nil)

	f := readUntil(t, conn, ofType(MessageTypePong))
	assert.JSONEq(t, `{"status":"alive"}`, string(f.Data))
}

func TestUnknownFrameType(t *testing.T) {
	env := newHubEnv(t)
	conn := env.dial(t, entity.GuestParticipant("g1"))

	send(t, conn, "typing", nil)

	f := readUntil(t, conn, ofType(MessageTypeError))
	var data ErrorData
	require.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, "BAD_REQUEST", data.Code)
}

func TestGuestChatReachesAdminInbox(t *testing.T) {
	env := newHubEnv(t)
	guest := env.dial(t, entity.GuestParticipant("g1"))
	admin := env.dial(t, entity.AdminParticipant)

	send(t, guest, MessageTypeOpenChat, nil)
	f := readUntil(t, guest, ofType(MessageTypeSession))
	var session entity.Session
	require.NoError(t, json.Unmarshal(f.Data, &session))
	assert.Equal(t, "Guest User", session.UserName)

	send(t, guest, MessageTypeSendMessage, SendMessageData{TempID: "t1", Message: "  hello  "})
	f = readUntil(t, guest, ofType(MessageTypeMessageSent))
	var sent MessageSentData
	require.NoError(t, json.Unmarshal(f.Data, &sent))
	assert.Equal(t, "t1", sent.TempID)
	assert.Equal(t, "hello", sent.Message.Body)

	send(t, admin, MessageTypeOpenChat, nil)
	f = readUntil(t, admin, func(f frame) bool {
		if f.Type != MessageTypeSessions {
			return false
		}
		var views []usecase.AdminSessionView
		require.NoError(t, json.Unmarshal(f.Data, &views))
		return len(views) == 1 && views[0].Unread == 1
	})
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &views))
	assert.Equal(t, session.ID, views[0]["id"])

	send(t, admin, MessageTypeSelectSession, SessionRefData{SessionID: session.ID})
	f = readUntil(t, admin, ofType(MessageTypeMessages))
	var history MessagesData
	require.NoError(t, json.Unmarshal(f.Data, &history))
	assert.Equal(t, session.ID, history.SessionID)
	require.Len(t, history.Messages, 1)

	send(t, admin, MessageTypeSendMessage, SendMessageData{TempID: "a1", Message: "hi, how can we help?"})
	readUntil(t, admin, ofType(MessageTypeMessageSent))

	f = readUntil(t, guest, func(f frame) bool {
		if f.Type != MessageTypeUnread {
			return false
		}
		var data UnreadData
		require.NoError(t, json.Unmarshal(f.Data, &data))
		return data.Count == 1
	})
	assert.Equal(t, MessageTypeUnread, f.Type)

	stored, err := env.store.GetRecord(context.Background(), domainrepo.SessionsCollection, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestAdminFramesRequireAdmin(t *testing.T) {
	env := newHubEnv(t)
	conn := env.dial(t, entity.UserParticipant("u1"))

	send(t, conn, MessageTypeSearch, SearchData{Query: "ann"})

	f := readUntil(t, conn, ofType(MessageTypeError))
	var data ErrorData
	require.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, "FORBIDDEN", data.Code)
}

func TestSendBeforeOpenChat(t *testing.T) {
	env := newHubEnv(t)
	conn := env.dial(t, entity.GuestParticipant("g1"))

	send(t, conn, MessageTypeSendMessage, SendMessageData{TempID: "t9", Message: "hello"})

	f := readUntil(t, conn, ofType(MessageTypeError))
	var data ErrorData
	require.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, "BAD_REQUEST", data.Code)
	assert.Equal(t, "t9", data.TempID)
}

func TestNotifyOrderEventRoutesToOwnerAndAdmin(t *testing.T) {
	env := newHubEnv(t)
	owner := env.dial(t, entity.UserParticipant("u1"))
	admin := env.dial(t, entity.AdminParticipant)

	env.manager.NotifyOrderEvent(context.Background(), usecase.OrderEvent{
		Type:  usecase.OrderStatusChanged,
		From:  entity.OrderPending,
		Order: &entity.Order{ID: "o1", UserID: "u1", Status: entity.OrderVerification},
	})

	for _, conn := range []*websocket.Conn{owner, admin} {
		f := readUntil(t, conn, ofType(MessageTypeOrderUpdate))
		var data OrderUpdateData
		require.NoError(t, json.Unmarshal(f.Data, &data))
		assert.Equal(t, usecase.OrderStatusChanged, data.Event)
		assert.Equal(t, entity.OrderPending, data.From)
		assert.Equal(t, "o1", data.Order.ID)
	}
}

func TestDisconnectReleasesSubscriptions(t *testing.T) {
	env := newHubEnv(t)
	participant := entity.GuestParticipant("g1")
	conn := env.dial(t, participant)

	send(t, conn, MessageTypeOpenChat, nil)
	f := readUntil(t, conn, ofType(MessageTypeSession))
	var session entity.Session
	require.NoError(t, json.Unmarshal(f.Data, &session))

	messagesCollection := domainrepo.MessagesCollection(session.ID)
	require.Eventually(t, func() bool {
		return env.store.SubscriberCount(messagesCollection) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return env.manager.ClientCount(participant) == 0 &&
			env.store.SubscriberCount(messagesCollection) == 0 &&
			env.store.SubscriberCount(domainrepo.SessionsCollection) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMarkReadOnForeignSessionIsForbidden(t *testing.T) {
	env := newHubEnv(t)
	owner := env.dial(t, entity.GuestParticipant("a"))
	intruder := env.dial(t, entity.GuestParticipant("b"))

	send(t, owner, MessageTypeOpenChat, nil)
	f := readUntil(t, owner, ofType(MessageTypeSession))
	var session entity.Session
	require.NoError(t, json.Unmarshal(f.Data, &session))

	send(t, intruder, MessageTypeMarkRead, SessionRefData{SessionID: session.ID})
	f = readUntil(t, intruder, ofType(MessageTypeError))
	var data ErrorData
	require.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, "FORBIDDEN", data.Code)

	stored, err := env.store.GetRecord(context.Background(), domainrepo.SessionsCollection, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	counts, ok := stored.Data["unreadCounts"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, counts, string(entity.GuestParticipant("b")))
	assert.Len(t, counts, 2)
}

func TestAddAfterShutdownDoesNotBlock(t *testing.T) {
	manager := NewManager(Services{})
	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	cancel()
	<-manager.done

	added := make(chan bool, 1)
	go func() {
		added <- manager.Add(NewClient(nil, entity.GuestParticipant("late"), usecase.SessionProfile{}))
	}()

	select {
	case ok := <-added:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Add blocked after the manager stopped")
	}
}
