package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
)

type sessionRepository struct {
	store repository.DocumentStore
}

func NewSessionRepository(store repository.DocumentStore) repository.SessionRepository {
	return &sessionRepository{
		store: store,
	}
}

func (r *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	participants := make([]interface{}, 0, len(session.Participants))
	unread := make(map[string]interface{}, len(session.Participants))
	for _, p := range session.Participants {
		participants = append(participants, string(p))
		unread[string(p)] = int64(session.UnreadFor(p))
	}

	id, err := r.store.CreateRecord(ctx, repository.SessionsCollection, map[string]interface{}{
		"participants": participants,
		"unreadCounts": unread,
		"lastMessage":  session.LastMessage,
		"type":         session.Type,
		"status":       string(session.Status),
		"userName":     session.UserName,
		"userEmail":    session.UserEmail,
		"lastActiveAt": repository.ServerTimestamp,
		"createdAt":    repository.ServerTimestamp,
	})
	if err != nil {
		return errors.Internal("Failed to create chat session", err)
	}
	session.ID = id

	// Pick up the store-assigned timestamps.
	if rec, err := r.store.GetRecord(ctx, repository.SessionsCollection, id); err == nil && rec != nil {
		stored := decodeSession(*rec)
		session.CreatedAt = stored.CreatedAt
		session.LastActiveAt = stored.LastActiveAt
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	rec, err := r.store.GetRecord(ctx, repository.SessionsCollection, id)
	if err != nil {
		return nil, errors.Internal("Failed to get chat session", err)
	}
	if rec == nil {
		return nil, errors.NotFound("Chat session", nil)
	}
	return decodeSession(*rec), nil
}

// FindByParticipant sorts in memory so the lookup needs no composite index.
func (r *sessionRepository) FindByParticipant(ctx context.Context, participant entity.ParticipantID) ([]*entity.Session, error) {
	records, err := r.store.QueryRecords(ctx, repository.SessionsCollection, participantQuery(participant))
	if err != nil {
		return nil, errors.Internal("Failed to query chat sessions", err)
	}
	return decodeSessions(records), nil
}

func (r *sessionRepository) ListAll(ctx context.Context) ([]*entity.Session, error) {
	records, err := r.store.QueryRecords(ctx, repository.SessionsCollection, allSessionsQuery())
	if err != nil {
		return nil, errors.Internal("Failed to list chat sessions", err)
	}
	return decodeSessions(records), nil
}

func (r *sessionRepository) RecordMessage(ctx context.Context, id, preview string, recipient entity.ParticipantID, reopen bool) error {
	updates := []repository.FieldUpdate{
		{Path: []string{"lastMessage"}, Value: preview},
		{Path: []string{"lastActiveAt"}, Value: repository.ServerTimestamp},
		{Path: []string{"unreadCounts", string(recipient)}, Value: repository.Increment(1)},
	}
	if reopen {
		updates = append(updates, repository.FieldUpdate{Path: []string{"status"}, Value: string(entity.SessionOpen)})
	}
	return r.update(ctx, id, updates)
}

func (r *sessionRepository) ResetUnread(ctx context.Context, id string, participant entity.ParticipantID) error {
	return r.update(ctx, id, []repository.FieldUpdate{
		{Path: []string{"unreadCounts", string(participant)}, Value: int64(0)},
	})
}

func (r *sessionRepository) SetStatus(ctx context.Context, id string, status entity.SessionStatus) error {
	return r.update(ctx, id, []repository.FieldUpdate{
		{Path: []string{"status"}, Value: string(status)},
	})
}

func (r *sessionRepository) WatchByParticipant(ctx context.Context, participant entity.ParticipantID, fn func([]*entity.Session, error)) (repository.Unsubscribe, error) {
	return r.store.Subscribe(ctx, repository.SessionsCollection, participantQuery(participant), func(records []repository.Record, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeSessions(records), nil)
	})
}

func (r *sessionRepository) WatchAll(ctx context.Context, fn func([]*entity.Session, error)) (repository.Unsubscribe, error) {
	return r.store.Subscribe(ctx, repository.SessionsCollection, allSessionsQuery(), func(records []repository.Record, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeSessions(records), nil)
	})
}

func (r *sessionRepository) update(ctx context.Context, id string, updates []repository.FieldUpdate) error {
	if err := r.store.UpdateRecord(ctx, repository.SessionsCollection, id, updates); err != nil {
		if isRecordNotFound(err) {
			return errors.NotFound("Chat session", err)
		}
		return errors.Internal("Failed to update chat session", err)
	}
	return nil
}

func participantQuery(participant entity.ParticipantID) repository.Query {
	return repository.Query{
		Filters: []repository.Filter{
			{Field: "participants", Op: repository.OpArrayContains, Value: string(participant)},
		},
	}
}

func allSessionsQuery() repository.Query {
	return repository.Query{
		OrderBy: []repository.Ordering{{Field: "lastActiveAt", Desc: true}},
	}
}

func decodeSessions(records []repository.Record) []*entity.Session {
	sessions := make([]*entity.Session, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, decodeSession(rec))
	}
	sortSessionsByActivity(sessions)
	return sessions
}
