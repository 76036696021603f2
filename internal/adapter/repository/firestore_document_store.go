package repository

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/logger"
)

type firestoreDocumentStore struct {
	client *firestore.Client
}

func NewFirestoreDocumentStore(client *firestore.Client) repository.DocumentStore {
	return &firestoreDocumentStore{
		client: client,
	}
}

func (s *firestoreDocumentStore) CreateRecord(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	payload := make(map[string]interface{}, len(data))
	for key, value := range data {
		payload[key] = toFirestoreValue(value)
	}

	ref, _, err := s.client.Collection(collection).Add(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *firestoreDocumentStore) GetRecord(ctx context.Context, collection, id string) (*repository.Record, error) {
	doc, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &repository.Record{ID: doc.Ref.ID, Data: doc.Data()}, nil
}

func (s *firestoreDocumentStore) UpdateRecord(ctx context.Context, collection, id string, updates []repository.FieldUpdate) error {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for _, update := range updates {
		fsUpdates = append(fsUpdates, firestore.Update{
			FieldPath: firestore.FieldPath(update.Path),
			Value:     toFirestoreValue(update.Value),
		})
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, fsUpdates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("update %s/%s: %w", collection, id, repository.ErrRecordNotFound)
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *firestoreDocumentStore) QueryRecords(ctx context.Context, collection string, q repository.Query) ([]repository.Record, error) {
	iter := s.buildQuery(collection, q).Documents(ctx)
	defer iter.Stop()

	var records []repository.Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		records = append(records, repository.Record{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return records, nil
}

func (s *firestoreDocumentStore) Subscribe(ctx context.Context, collection string, q repository.Query, fn repository.SnapshotFunc) (repository.Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	snapshots := s.buildQuery(collection, q).Snapshots(subCtx)

	first, err := snapshots.Next()
	if err != nil {
		snapshots.Stop()
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	records, err := snapshotRecords(first)
	if err != nil {
		snapshots.Stop()
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	fn(records, nil)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			snapshots.Stop()
		})
	}

	go func() {
		defer stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if subCtx.Err() != nil || status.Code(err) == codes.Canceled || err == iterator.Done {
					return
				}
				logger.Error("Snapshot listener on %s failed: %v", collection, err)
				fn(nil, err)
				return
			}
			records, err := snapshotRecords(snap)
			if err != nil {
				fn(nil, err)
				return
			}
			fn(records, nil)
		}
	}()

	return stop, nil
}

func (s *firestoreDocumentStore) buildQuery(collection string, q repository.Query) firestore.Query {
	query := s.client.Collection(collection).Query
	for _, filter := range q.Filters {
		query = query.Where(filter.Field, string(filter.Op), toFirestoreValue(filter.Value))
	}
	for _, ordering := range q.OrderBy {
		direction := firestore.Asc
		if ordering.Desc {
			direction = firestore.Desc
		}
		query = query.OrderBy(ordering.Field, direction)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func snapshotRecords(snap *firestore.QuerySnapshot) ([]repository.Record, error) {
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, err
	}
	records := make([]repository.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, repository.Record{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return records, nil
}

func toFirestoreValue(value interface{}) interface{} {
	switch v := value.(type) {
	case repository.ServerTimestampValue:
		return firestore.ServerTimestamp
	case repository.IncrementValue:
		return firestore.Increment(v.By)
	case repository.ArrayAppendValue:
		return firestore.ArrayUnion(v.Elements...)
	}
	return value
}
