package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
)

type messageRepository struct {
	store repository.DocumentStore
}

func NewMessageRepository(store repository.DocumentStore) repository.MessageRepository {
	return &messageRepository{
		store: store,
	}
}

func (r *messageRepository) Create(ctx context.Context, message *entity.Message) error {
	collection := repository.MessagesCollection(message.SessionID)

	id, err := r.store.CreateRecord(ctx, collection, map[string]interface{}{
		"senderId":  string(message.SenderID),
		"message":   message.Body,
		"createdAt": repository.ServerTimestamp,
		"read":      false,
	})
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	message.ID = id
	message.Read = false

	if rec, err := r.store.GetRecord(ctx, collection, id); err == nil && rec != nil {
		message.CreatedAt = timeField(rec.Data, "createdAt")
	}
	return nil
}

func (r *messageRepository) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*entity.Message, error) {
	q := messagesQuery()
	q.Limit = limit
	q.Offset = offset

	records, err := r.store.QueryRecords(ctx, repository.MessagesCollection(sessionID), q)
	if err != nil {
		return nil, errors.Internal("Failed to list messages", err)
	}
	return decodeMessages(sessionID, records), nil
}

func (r *messageRepository) WatchBySession(ctx context.Context, sessionID string, fn func([]*entity.Message, error)) (repository.Unsubscribe, error) {
	return r.store.Subscribe(ctx, repository.MessagesCollection(sessionID), messagesQuery(), func(records []repository.Record, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeMessages(sessionID, records), nil)
	})
}

func messagesQuery() repository.Query {
	return repository.Query{
		OrderBy: []repository.Ordering{{Field: "createdAt"}},
	}
}

func decodeMessages(sessionID string, records []repository.Record) []*entity.Message {
	messages := make([]*entity.Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, decodeMessage(sessionID, rec))
	}
	return messages
}
