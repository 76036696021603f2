package usecase

import (
	"context"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/internal/infrastructure/metrics"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
)

// SessionProfile is captured on the session at creation for the admin list.
type SessionProfile struct {
	Name  string
	Email string
}

type SessionDirectory struct {
	sessions repository.SessionRepository
}

func NewSessionDirectory(sessions repository.SessionRepository) *SessionDirectory {
	return &SessionDirectory{
		sessions: sessions,
	}
}

// GetOrCreate returns the participant's session, creating it on first contact.
// Lookup and create are not atomic: two concurrent first contacts can both
// create. Later lookups then see both, log the race and use the most recently
// active one.
func (d *SessionDirectory) GetOrCreate(ctx context.Context, participant entity.ParticipantID, profile SessionProfile) (*entity.Session, error) {
	if !participant.Valid() || participant.IsAdmin() {
		return nil, errors.BadRequest("A guest or user participant is required", nil)
	}

	existing, err := d.sessions.FindByParticipant(ctx, participant)
	if err != nil {
		logger.Error("GetOrCreate: lookup for %s failed: %v", participant, err)
		return nil, errors.SessionLookupFailed(err)
	}
	if len(existing) > 0 {
		if len(existing) > 1 {
			ids := make([]string, 0, len(existing))
			for _, s := range existing {
				ids = append(ids, s.ID)
			}
			logger.L().Warn().
				Str("participant", string(participant)).
				Strs("session_ids", ids).
				Msg("DuplicateSessionRace: multiple sessions for one participant, using the most recent")
			metrics.IncDuplicateSession()
		}
		return existing[0], nil
	}

	session := &entity.Session{
		Participants: []entity.ParticipantID{participant, entity.AdminParticipant},
		UnreadCounts: map[entity.ParticipantID]int{
			participant:             0,
			entity.AdminParticipant: 0,
		},
		Type:      participant.Kind(),
		Status:    entity.SessionOpen,
		UserName:  profile.Name,
		UserEmail: profile.Email,
	}
	if participant.IsGuest() {
		session.UserName = entity.GuestDisplayName
	}

	if err := d.sessions.Create(ctx, session); err != nil {
		logger.Error("GetOrCreate: create for %s failed: %v", participant, err)
		return nil, errors.SessionCreateFailed(err)
	}

	metrics.IncSessionCreated(session.Type)
	logger.Info("Chat session %s created for %s", session.ID, participant)
	return session, nil
}

func (d *SessionDirectory) Get(ctx context.Context, sessionID string) (*entity.Session, error) {
	session, err := d.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.SessionNotFound(sessionID)
		}
		return nil, errors.SessionLookupFailed(err)
	}
	return session, nil
}

// GetFor returns the session only when participant belongs to it.
func (d *SessionDirectory) GetFor(ctx context.Context, sessionID string, participant entity.ParticipantID) (*entity.Session, error) {
	session, err := d.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(participant) {
		return nil, errors.Forbidden("You are not a participant in this chat session", nil)
	}
	return session, nil
}

// All returns every session, most recently active first.
func (d *SessionDirectory) All(ctx context.Context) ([]*entity.Session, error) {
	sessions, err := d.sessions.ListAll(ctx)
	if err != nil {
		return nil, errors.SessionLookupFailed(err)
	}
	return sessions, nil
}

// ListForParticipant streams the participant's sessions (normally zero or one).
func (d *SessionDirectory) ListForParticipant(ctx context.Context, participant entity.ParticipantID, fn func([]*entity.Session, error)) (*Subscription, error) {
	stop, err := d.sessions.WatchByParticipant(ctx, participant, fn)
	if err != nil {
		return nil, errors.SessionLookupFailed(err)
	}
	return newSubscription(ctx, stop), nil
}

// ListAll streams every session ordered by last activity, newest first.
func (d *SessionDirectory) ListAll(ctx context.Context, fn func([]*entity.Session, error)) (*Subscription, error) {
	stop, err := d.sessions.WatchAll(ctx, fn)
	if err != nil {
		return nil, errors.SessionLookupFailed(err)
	}
	return newSubscription(ctx, stop), nil
}

// Resolve marks the conversation handled. A new counterpart message reopens it.
func (d *SessionDirectory) Resolve(ctx context.Context, sessionID string) error {
	return d.setStatus(ctx, sessionID, entity.SessionResolved)
}

func (d *SessionDirectory) Reopen(ctx context.Context, sessionID string) error {
	return d.setStatus(ctx, sessionID, entity.SessionOpen)
}

func (d *SessionDirectory) setStatus(ctx context.Context, sessionID string, status entity.SessionStatus) error {
	if err := d.sessions.SetStatus(ctx, sessionID, status); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return errors.SessionNotFound(sessionID)
		}
		return errors.Internal("Failed to update chat session status", err)
	}
	return nil
}
