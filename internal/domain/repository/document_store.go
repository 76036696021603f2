package repository

import (
	"context"
	"errors"
)

// Collection paths are slash separated, e.g. "sessions" or "sessions/{id}/messages".
const (
	SessionsCollection = "sessions"
	OrdersCollection   = "orders"
	UsersCollection    = "users"
)

func MessagesCollection(sessionID string) string {
	return SessionsCollection + "/" + sessionID + "/messages"
}

// ErrRecordNotFound is returned (wrapped) by UpdateRecord when the target does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Record is a stored document with its store-assigned id.
type Record struct {
	ID   string
	Data map[string]interface{}
}

type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
)

type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

type Ordering struct {
	Field string
	Desc  bool
}

type Query struct {
	Filters []Filter
	OrderBy []Ordering
	Limit   int
	Offset  int
}

// FieldUpdate sets the value at a nested field path, e.g. {"unreadCounts", "admin"}.
type FieldUpdate struct {
	Path  []string
	Value interface{}
}

// Unsubscribe stops a live query. Calling it more than once is a no-op.
type Unsubscribe func()

// SnapshotFunc receives the full result set on every change, or the error that ended the stream.
type SnapshotFunc func(records []Record, err error)

// DocumentStore is the hosted document database the service is built on.
type DocumentStore interface {
	CreateRecord(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	// GetRecord returns nil, nil when the record does not exist.
	GetRecord(ctx context.Context, collection, id string) (*Record, error)
	UpdateRecord(ctx context.Context, collection, id string, updates []FieldUpdate) error
	QueryRecords(ctx context.Context, collection string, q Query) ([]Record, error)
	// Subscribe delivers the initial snapshot before returning, then every change until
	// the returned Unsubscribe is called or ctx is done.
	Subscribe(ctx context.Context, collection string, q Query, fn SnapshotFunc) (Unsubscribe, error)
}

// Write sentinels understood by every DocumentStore implementation.

type ServerTimestampValue struct{}

// ServerTimestamp is replaced by the store's clock at write time.
var ServerTimestamp = ServerTimestampValue{}

type IncrementValue struct {
	By int64
}

// Increment atomically adds n to a numeric field, treating a missing field as 0.
func Increment(n int64) IncrementValue {
	return IncrementValue{By: n}
}

type ArrayAppendValue struct {
	Elements []interface{}
}

// ArrayAppend appends the elements that are not already present in an array field.
func ArrayAppend(elements ...interface{}) ArrayAppendValue {
	return ArrayAppendValue{Elements: elements}
}
