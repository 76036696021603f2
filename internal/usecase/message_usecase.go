package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/internal/infrastructure/metrics"
	"mitcstore/internal/infrastructure/ratelimit"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
)

const DefaultHistoryLimit = 50

type MessageChannel struct {
	directory *SessionDirectory
	sessions  repository.SessionRepository
	messages  repository.MessageRepository
	limiter   Limiter
}

func NewMessageChannel(
	directory *SessionDirectory,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	limiter Limiter,
) *MessageChannel {
	return &MessageChannel{
		directory: directory,
		sessions:  sessions,
		messages:  messages,
		limiter:   limiter,
	}
}

// Send appends a message and then updates the session preview, activity time
// and the recipient's unread counter. The two writes are separate; on a
// session update failure the returned CHANNEL_WRITE_ERROR says the message was
// stored.
func (ch *MessageChannel) Send(ctx context.Context, sessionID string, sender entity.ParticipantID, body string) (*entity.Message, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return nil, errors.EmptyMessage()
	}
	if utf8.RuneCountInString(text) > entity.MaxMessageLength {
		return nil, errors.MessageTooLong(entity.MaxMessageLength)
	}

	if ch.limiter != nil {
		allowed, wait := ch.limiter.Allow(string(sender), ratelimit.ActionSendMessage)
		if !allowed {
			logger.Debug("Send rate limited: %s must wait %v", sender, wait)
			return nil, errors.TooManyRequests(fmt.Sprintf("Too many messages. Please wait %s", wait.Round(time.Second)))
		}
	}

	session, err := ch.directory.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	recipient, ok := session.RecipientOf(sender)
	if !ok {
		return nil, errors.Forbidden("You are not a participant in this chat session", nil)
	}

	message := &entity.Message{
		SessionID: sessionID,
		SenderID:  sender,
		Body:      text,
	}
	if err := ch.messages.Create(ctx, message); err != nil {
		metrics.IncSendFailure("message")
		logger.Error("Send: message write to %s failed: %v", sessionID, err)
		return nil, errors.ChannelWriteError(false, err)
	}

	reopen := !sender.IsAdmin()
	if err := ch.sessions.RecordMessage(ctx, sessionID, entity.Preview(text), recipient, reopen); err != nil {
		metrics.IncSendFailure("session")
		logger.Error("Send: session update for %s failed after message %s was stored: %v", sessionID, message.ID, err)
		return message, errors.ChannelWriteError(true, err)
	}

	metrics.IncMessageSent(sender.Kind())
	return message, nil
}

// Subscribe streams the full message list, oldest first, on every change.
func (ch *MessageChannel) Subscribe(ctx context.Context, sessionID string, fn func([]*entity.Message, error)) (*Subscription, error) {
	stop, err := ch.messages.WatchBySession(ctx, sessionID, fn)
	if err != nil {
		return nil, errors.Internal("Failed to subscribe to chat messages", err)
	}
	return newSubscription(ctx, stop), nil
}

// History returns a page of messages, oldest first.
func (ch *MessageChannel) History(ctx context.Context, sessionID string, limit, offset int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	messages, err := ch.messages.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, errors.Internal("Failed to load chat messages", err)
	}
	return messages, nil
}
