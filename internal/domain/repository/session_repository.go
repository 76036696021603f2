package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	FindByParticipant(ctx context.Context, participant entity.ParticipantID) ([]*entity.Session, error)
	ListAll(ctx context.Context) ([]*entity.Session, error)

	// RecordMessage stores the preview, bumps lastActiveAt and increments the recipient's unread counter.
	RecordMessage(ctx context.Context, id, preview string, recipient entity.ParticipantID, reopen bool) error
	ResetUnread(ctx context.Context, id string, participant entity.ParticipantID) error
	SetStatus(ctx context.Context, id string, status entity.SessionStatus) error

	WatchByParticipant(ctx context.Context, participant entity.ParticipantID, fn func([]*entity.Session, error)) (Unsubscribe, error)
	WatchAll(ctx context.Context, fn func([]*entity.Session, error)) (Unsubscribe, error)
}
