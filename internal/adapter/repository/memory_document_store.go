package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mitcstore/internal/domain/repository"
)

type memoryRecord struct {
	seq  int64
	data map[string]interface{}
}

// MemoryDocumentStore is an in-process DocumentStore used by the memory storage
// driver and by tests. Timestamps come from a strictly increasing clock.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryRecord
	seq         int64
	lastTime    time.Time
	now         func() time.Time

	subsMu sync.Mutex
	subs   map[string]map[*memorySubscription]struct{}
}

type memorySubscription struct {
	store      *MemoryDocumentStore
	collection string
	query      repository.Query
	fn         repository.SnapshotFunc
	notify     chan struct{}
	done       chan struct{}
	once       sync.Once
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		collections: make(map[string]map[string]*memoryRecord),
		subs:        make(map[string]map[*memorySubscription]struct{}),
		now:         time.Now,
	}
}

// serverTime must be called with mu held.
func (s *MemoryDocumentStore) serverTime() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = t
	return t
}

func (s *MemoryDocumentStore) CreateRecord(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	id := uuid.New().String()
	now := s.serverTime()
	stored := make(map[string]interface{}, len(data))
	for key, value := range data {
		resolved, err := resolveWrite(nil, value, now)
		if err != nil {
			s.mu.Unlock()
			return "", fmt.Errorf("create %s: field %s: %w", collection, key, err)
		}
		stored[key] = resolved
	}

	records, ok := s.collections[collection]
	if !ok {
		records = make(map[string]*memoryRecord)
		s.collections[collection] = records
	}
	s.seq++
	records[id] = &memoryRecord{seq: s.seq, data: stored}
	s.mu.Unlock()

	s.publish(collection)
	return id, nil
}

func (s *MemoryDocumentStore) GetRecord(ctx context.Context, collection, id string) (*repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return &repository.Record{ID: id, Data: copyMap(rec.data)}, nil
}

func (s *MemoryDocumentStore) UpdateRecord(ctx context.Context, collection, id string, updates []repository.FieldUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, repository.ErrRecordNotFound)
	}

	// Apply to a copy so a failing update leaves the record untouched.
	data := copyMap(rec.data)
	now := s.serverTime()
	for _, update := range updates {
		if len(update.Path) == 0 {
			s.mu.Unlock()
			return fmt.Errorf("update %s/%s: empty field path", collection, id)
		}
		if err := setPath(data, update.Path, update.Value, now); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("update %s/%s: %s: %w", collection, id, strings.Join(update.Path, "."), err)
		}
	}
	rec.data = data
	s.mu.Unlock()

	s.publish(collection)
	return nil
}

func (s *MemoryDocumentStore) QueryRecords(ctx context.Context, collection string, q repository.Query) ([]repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(collection, q), nil
}

// query must be called with mu held.
func (s *MemoryDocumentStore) query(collection string, q repository.Query) []repository.Record {
	type candidate struct {
		id  string
		rec *memoryRecord
	}

	var matched []candidate
	for id, rec := range s.collections[collection] {
		if matchesFilters(rec.data, q.Filters) && hasOrderFields(rec.data, q.OrderBy) {
			matched = append(matched, candidate{id: id, rec: rec})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, ordering := range q.OrderBy {
			c := compareValues(matched[i].rec.data[ordering.Field], matched[j].rec.data[ordering.Field])
			if c == 0 {
				continue
			}
			if ordering.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].rec.seq < matched[j].rec.seq
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	records := make([]repository.Record, 0, len(matched))
	for _, m := range matched {
		records = append(records, repository.Record{ID: m.id, Data: copyMap(m.rec.data)})
	}
	return records
}

func (s *MemoryDocumentStore) Subscribe(ctx context.Context, collection string, q repository.Query, fn repository.SnapshotFunc) (repository.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		store:      s,
		collection: collection,
		query:      q,
		fn:         fn,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	s.subsMu.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[*memorySubscription]struct{})
	}
	s.subs[collection][sub] = struct{}{}
	s.subsMu.Unlock()

	s.mu.RLock()
	initial := s.query(collection, q)
	s.mu.RUnlock()
	fn(initial, nil)

	go sub.run(ctx)

	return sub.stop, nil
}

// publish wakes every subscription on collection. Pending wakeups coalesce so
// each delivery carries the latest state.
func (s *MemoryDocumentStore) publish(collection string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for sub := range s.subs[collection] {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

func (sub *memorySubscription) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			sub.stop()
			return
		case <-sub.done:
			return
		case <-sub.notify:
			sub.store.mu.RLock()
			records := sub.store.query(sub.collection, sub.query)
			sub.store.mu.RUnlock()

			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(records, nil)
		}
	}
}

func (sub *memorySubscription) stop() {
	sub.once.Do(func() {
		close(sub.done)
		sub.store.subsMu.Lock()
		delete(sub.store.subs[sub.collection], sub)
		sub.store.subsMu.Unlock()
	})
}

// SubscriberCount reports the live subscriptions on a collection.
func (s *MemoryDocumentStore) SubscriberCount(collection string) int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs[collection])
}

func setPath(data map[string]interface{}, path []string, value interface{}, now time.Time) error {
	current := data
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			if _, exists := current[key]; exists {
				return fmt.Errorf("field %s is not a map", key)
			}
			next = make(map[string]interface{})
			current[key] = next
		}
		current = next
	}

	last := path[len(path)-1]
	resolved, err := resolveWrite(current[last], value, now)
	if err != nil {
		return err
	}
	current[last] = resolved
	return nil
}

// resolveWrite turns a written value into its stored form, applying sentinels against existing.
func resolveWrite(existing, value interface{}, now time.Time) (interface{}, error) {
	switch v := value.(type) {
	case repository.ServerTimestampValue:
		return now, nil
	case repository.IncrementValue:
		switch n := existing.(type) {
		case nil:
			return v.By, nil
		case int64:
			return n + v.By, nil
		case float64:
			return n + float64(v.By), nil
		default:
			return nil, fmt.Errorf("cannot increment %T", existing)
		}
	case repository.ArrayAppendValue:
		var arr []interface{}
		if existing != nil {
			current, ok := existing.([]interface{})
			if !ok {
				return nil, fmt.Errorf("cannot append to %T", existing)
			}
			arr = append(arr, current...)
		}
		for _, element := range v.Elements {
			element = normalize(element)
			if !containsValue(arr, element) {
				arr = append(arr, element)
			}
		}
		return arr, nil
	}
	return normalize(value), nil
}

// normalize converts values to the shapes a document store hands back:
// int64 for integers, float64 for floats, plain strings, []interface{} and
// map[string]interface{} for containers.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC()
	case map[string]interface{}:
		return copyMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, element := range v {
			out[i] = normalize(element)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	}
	return value
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[key] = normalize(value)
	}
	return out
}

func matchesFilters(data map[string]interface{}, filters []repository.Filter) bool {
	for _, filter := range filters {
		value, ok := data[filter.Field]
		if !ok {
			return false
		}
		want := normalize(filter.Value)

		switch filter.Op {
		case repository.OpEqual:
			if compareValues(value, want) != 0 || reflect.TypeOf(value) != reflect.TypeOf(want) {
				return false
			}
		case repository.OpArrayContains:
			arr, ok := value.([]interface{})
			if !ok || !containsValue(arr, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func hasOrderFields(data map[string]interface{}, orderings []repository.Ordering) bool {
	for _, ordering := range orderings {
		if _, ok := data[ordering.Field]; !ok {
			return false
		}
	}
	return true
}

func containsValue(arr []interface{}, want interface{}) bool {
	for _, element := range arr {
		if reflect.DeepEqual(element, want) {
			return true
		}
	}
	return false
}

// compareValues orders scalars of the same kind. Mixed or unsupported kinds compare equal.
func compareValues(a, b interface{}) int {
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return compareNumbers(float64(x), float64(y))
		case float64:
			return compareNumbers(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return compareNumbers(x, float64(y))
		case float64:
			return compareNumbers(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return 0
}

func compareNumbers(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
