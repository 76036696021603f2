package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"mitcstore/internal/adapter/repository"
	"mitcstore/internal/domain/entity"
	domainrepo "mitcstore/internal/domain/repository"
)

type chatEnv struct {
	store     *repository.MemoryDocumentStore
	sessions  domainrepo.SessionRepository
	messages  domainrepo.MessageRepository
	users     *stubUserRepo
	directory *SessionDirectory
	channel   *MessageChannel
	unread    *UnreadCounter
	admin     *AdminChatUseCase
}

func newChatEnv() *chatEnv {
	store := repository.NewMemoryDocumentStore()
	sessions := repository.NewSessionRepository(store)
	messages := repository.NewMessageRepository(store)
	users := &stubUserRepo{profiles: map[string]*entity.User{}}

	directory := NewSessionDirectory(sessions)
	channel := NewMessageChannel(directory, sessions, messages, nil)
	unread := NewUnreadCounter(sessions)

	return &chatEnv{
		store:     store,
		sessions:  sessions,
		messages:  messages,
		users:     users,
		directory: directory,
		channel:   channel,
		unread:    unread,
		admin:     NewAdminChatUseCase(directory, channel, unread, users),
	}
}

type stubUserRepo struct {
	mu       sync.Mutex
	profiles map[string]*entity.User
	calls    int
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if u, ok := r.profiles[id]; ok {
		return u, nil
	}
	return nil, nil
}

type memoryTokens struct {
	token   string
	saveErr error
	saves   int
}

func (m *memoryTokens) Load() (string, bool) {
	return m.token, m.token != ""
}

func (m *memoryTokens) Save(token string) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyOrderEvent(ctx context.Context, event OrderEvent) {
	m.Called(ctx, event)
}

type denyLimiter struct{}

func (denyLimiter) Allow(key, action string) (bool, time.Duration) {
	return false, 3 * time.Second
}

// failingSessionRepo fails session activity updates so Send hits its second write error.
type failingSessionRepo struct {
	domainrepo.SessionRepository
}

func (r failingSessionRepo) RecordMessage(ctx context.Context, id, preview string, recipient entity.ParticipantID, reopen bool) error {
	return errors.New("unavailable")
}

// messageRecorder collects snapshots delivered by a subscription.
type messageRecorder struct {
	mu        sync.Mutex
	snapshots [][]*entity.Message
}

func (r *messageRecorder) record(messages []*entity.Message, err error) {
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, messages)
}

func (r *messageRecorder) last() []*entity.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}
