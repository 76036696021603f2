package usecase

import (
	"context"
	"strings"
	"sync"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
)

const UnknownCustomerName = "Unknown customer"

// AdminSessionView is a session joined with the counterpart's profile.
type AdminSessionView struct {
	*entity.Session
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Unread      int    `json:"unread"`
	HasUnread   bool   `json:"has_unread"`
}

type AdminChatUseCase struct {
	directory *SessionDirectory
	channel   *MessageChannel
	unread    *UnreadCounter
	userRepo  repository.UserRepository
}

func NewAdminChatUseCase(
	directory *SessionDirectory,
	channel *MessageChannel,
	unread *UnreadCounter,
	userRepo repository.UserRepository,
) *AdminChatUseCase {
	return &AdminChatUseCase{
		directory: directory,
		channel:   channel,
		unread:    unread,
		userRepo:  userRepo,
	}
}

// ListSessions returns every session, newest activity first, filtered by a
// case-insensitive substring of the customer's name or email.
func (uc *AdminChatUseCase) ListSessions(ctx context.Context, query string) ([]*AdminSessionView, error) {
	sessions, err := uc.directory.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterViews(uc.join(ctx, sessions), query), nil
}

func (uc *AdminChatUseCase) Send(ctx context.Context, sessionID, body string) (*entity.Message, error) {
	return uc.channel.Send(ctx, sessionID, entity.AdminParticipant, body)
}

func (uc *AdminChatUseCase) History(ctx context.Context, sessionID string, limit, offset int) ([]*entity.Message, error) {
	if _, err := uc.directory.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return uc.channel.History(ctx, sessionID, limit, offset)
}

func (uc *AdminChatUseCase) MarkRead(ctx context.Context, sessionID string) error {
	return uc.unread.MarkRead(ctx, sessionID, entity.AdminParticipant)
}

func (uc *AdminChatUseCase) Resolve(ctx context.Context, sessionID string) error {
	return uc.directory.Resolve(ctx, sessionID)
}

func (uc *AdminChatUseCase) TotalUnread(ctx context.Context) (int, error) {
	return uc.unread.TotalUnread(ctx, entity.AdminParticipant)
}

func (uc *AdminChatUseCase) join(ctx context.Context, sessions []*entity.Session) []*AdminSessionView {
	profiles := make(map[string]*entity.User)
	views := make([]*AdminSessionView, 0, len(sessions))

	for _, session := range sessions {
		view := &AdminSessionView{
			Session:     session,
			DisplayName: session.UserName,
			Email:       session.UserEmail,
			Unread:      session.UnreadFor(entity.AdminParticipant),
		}
		view.HasUnread = view.Unread > 0

		counterpart := session.Counterpart()
		switch {
		case counterpart.IsGuest():
			view.DisplayName = entity.GuestDisplayName
		case counterpart.IsUser():
			uid := counterpart.AccountID()
			profile, seen := profiles[uid]
			if !seen {
				var err error
				profile, err = uc.userRepo.GetByID(ctx, uid)
				if err != nil && !errors.Is(err, errors.CodeNotFound) {
					logger.Warn("Profile lookup for %s failed: %v", uid, err)
				}
				profiles[uid] = profile
			}
			if profile != nil {
				if name := profile.DisplayName(); name != "" {
					view.DisplayName = name
				}
				if profile.Email != "" {
					view.Email = profile.Email
				}
			}
			if view.DisplayName == "" {
				view.DisplayName = UnknownCustomerName
			}
		default:
			view.DisplayName = UnknownCustomerName
		}

		views = append(views, view)
	}
	return views
}

func filterViews(views []*AdminSessionView, query string) []*AdminSessionView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return views
	}

	filtered := make([]*AdminSessionView, 0, len(views))
	for _, view := range views {
		if strings.Contains(strings.ToLower(view.DisplayName), q) || strings.Contains(strings.ToLower(view.Email), q) {
			filtered = append(filtered, view)
		}
	}
	return filtered
}

// InboxHandlers receive AdminInbox updates. Any of them may be nil.
type InboxHandlers struct {
	OnSessions func(sessions []*AdminSessionView)
	OnMessages func(sessionID string, messages []*entity.Message)
	OnError    func(err error)
}

// AdminInbox is the admin's live view: every session plus the messages of at
// most one selected session.
type AdminInbox struct {
	uc       *AdminChatUseCase
	ctx      context.Context
	handlers InboxHandlers

	selectMu sync.Mutex

	mu          sync.Mutex
	filter      string
	latest      []*entity.Session
	sessionsSub *Subscription
	selected    string
	messagesSub *Subscription
	closed      bool
}

func (uc *AdminChatUseCase) OpenInbox(ctx context.Context, handlers InboxHandlers) (*AdminInbox, error) {
	inbox := &AdminInbox{
		uc:       uc,
		ctx:      ctx,
		handlers: handlers,
	}

	sub, err := uc.directory.ListAll(ctx, inbox.onSessions)
	if err != nil {
		return nil, err
	}

	inbox.mu.Lock()
	inbox.sessionsSub = sub
	inbox.mu.Unlock()
	return inbox, nil
}

func (in *AdminInbox) onSessions(sessions []*entity.Session, err error) {
	if err != nil {
		in.emitError(err)
		return
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.latest = sessions
	filter := in.filter
	in.mu.Unlock()

	in.emitSessions(sessions, filter)
}

// SetFilter narrows the session list and re-emits it immediately.
func (in *AdminInbox) SetFilter(query string) {
	in.mu.Lock()
	in.filter = query
	sessions := in.latest
	closed := in.closed
	in.mu.Unlock()

	if !closed {
		in.emitSessions(sessions, query)
	}
}

// Select switches the message view to sessionID. The previous message
// subscription is released before the new one is opened, so at most one is
// ever active. Selecting also clears the admin's unread counter.
func (in *AdminInbox) Select(ctx context.Context, sessionID string) error {
	in.selectMu.Lock()
	defer in.selectMu.Unlock()

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return errors.BadRequest("Inbox is closed", nil)
	}
	previous := in.messagesSub
	in.messagesSub = nil
	in.selected = ""
	in.mu.Unlock()

	previous.Unsubscribe()

	if _, err := in.uc.directory.Get(ctx, sessionID); err != nil {
		return err
	}

	in.mu.Lock()
	in.selected = sessionID
	in.mu.Unlock()

	sub, err := in.uc.channel.Subscribe(in.ctx, sessionID, func(messages []*entity.Message, err error) {
		if err != nil {
			in.emitError(err)
			return
		}
		in.mu.Lock()
		current := in.selected == sessionID && !in.closed
		in.mu.Unlock()
		if current && in.handlers.OnMessages != nil {
			in.handlers.OnMessages(sessionID, messages)
		}
	})
	if err != nil {
		in.mu.Lock()
		in.selected = ""
		in.mu.Unlock()
		return err
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		sub.Unsubscribe()
		return errors.BadRequest("Inbox is closed", nil)
	}
	in.messagesSub = sub
	in.mu.Unlock()

	if err := in.uc.MarkRead(ctx, sessionID); err != nil {
		logger.Warn("Select: mark read for %s failed: %v", sessionID, err)
	}
	return nil
}

func (in *AdminInbox) Selected() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.selected
}

// Send posts as admin to the selected session.
func (in *AdminInbox) Send(ctx context.Context, body string) (*entity.Message, error) {
	sessionID := in.Selected()
	if sessionID == "" {
		return nil, errors.BadRequest("No chat session selected", nil)
	}
	return in.uc.Send(ctx, sessionID, body)
}

func (in *AdminInbox) MarkRead(ctx context.Context) error {
	sessionID := in.Selected()
	if sessionID == "" {
		return errors.BadRequest("No chat session selected", nil)
	}
	return in.uc.MarkRead(ctx, sessionID)
}

// Close releases every subscription held by the inbox.
func (in *AdminInbox) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	sessionsSub := in.sessionsSub
	messagesSub := in.messagesSub
	in.sessionsSub = nil
	in.messagesSub = nil
	in.selected = ""
	in.mu.Unlock()

	messagesSub.Unsubscribe()
	sessionsSub.Unsubscribe()
}

func (in *AdminInbox) emitSessions(sessions []*entity.Session, filter string) {
	if in.handlers.OnSessions == nil {
		return
	}
	in.handlers.OnSessions(filterViews(in.uc.join(in.ctx, sessions), filter))
}

func (in *AdminInbox) emitError(err error) {
	logger.Error("Admin inbox subscription error: %v", err)
	if in.handlers.OnError != nil {
		in.handlers.OnError(err)
	}
}
