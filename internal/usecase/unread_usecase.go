package usecase

import (
	"context"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
)

// UnreadCounter reads and clears the per-participant counters kept on sessions.
// Increments happen in MessageChannel.Send.
type UnreadCounter struct {
	sessions repository.SessionRepository
}

func NewUnreadCounter(sessions repository.SessionRepository) *UnreadCounter {
	return &UnreadCounter{
		sessions: sessions,
	}
}

// MarkRead clears participant's counter on a session it belongs to.
func (u *UnreadCounter) MarkRead(ctx context.Context, sessionID string, participant entity.ParticipantID) error {
	session, err := u.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return errors.SessionNotFound(sessionID)
		}
		return errors.SessionLookupFailed(err)
	}
	if !session.HasParticipant(participant) {
		return errors.Forbidden("You are not a participant in this chat session", nil)
	}

	if err := u.sessions.ResetUnread(ctx, sessionID, participant); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return errors.SessionNotFound(sessionID)
		}
		return errors.Internal("Failed to mark chat as read", err)
	}
	return nil
}

func (u *UnreadCounter) TotalUnread(ctx context.Context, participant entity.ParticipantID) (int, error) {
	sessions, err := u.sessions.FindByParticipant(ctx, participant)
	if err != nil {
		return 0, errors.SessionLookupFailed(err)
	}
	return SumUnread(sessions, participant), nil
}

func SumUnread(sessions []*entity.Session, participant entity.ParticipantID) int {
	total := 0
	for _, s := range sessions {
		total += s.UnreadFor(participant)
	}
	return total
}
