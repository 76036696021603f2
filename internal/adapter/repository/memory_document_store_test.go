package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mitcstore/internal/domain/repository"
)

func TestMemoryDocumentStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()

	id, err := store.CreateRecord(ctx, "things", map[string]interface{}{
		"name":      "widget",
		"count":     3,
		"tags":      []string{"a", "b"},
		"createdAt": repository.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := store.GetRecord(ctx, "things", id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "widget", rec.Data["name"])
	assert.Equal(t, int64(3), rec.Data["count"])
	assert.Equal(t, []interface{}{"a", "b"}, rec.Data["tags"])
	assert.IsType(t, time.Time{}, rec.Data["createdAt"])

	missing, err := store.GetRecord(ctx, "things", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryDocumentStore_ServerClockIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	var stamps []time.Time
	for i := 0; i < 5; i++ {
		id, err := store.CreateRecord(ctx, "ticks", map[string]interface{}{"at": repository.ServerTimestamp})
		require.NoError(t, err)
		rec, _ := store.GetRecord(ctx, "ticks", id)
		stamps = append(stamps, rec.Data["at"].(time.Time))
	}

	for i := 1; i < len(stamps); i++ {
		assert.True(t, stamps[i].After(stamps[i-1]), "timestamp %d should be after %d", i, i-1)
	}
}

func TestMemoryDocumentStore_UpdateSentinels(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()

	id, err := store.CreateRecord(ctx, "sessions", map[string]interface{}{
		"unreadCounts": map[string]interface{}{"admin": int64(0)},
		"logs":         []interface{}{},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err = store.UpdateRecord(ctx, "sessions", id, []repository.FieldUpdate{
			{Path: []string{"unreadCounts", "admin"}, Value: repository.Increment(1)},
			{Path: []string{"unreadCounts", "guest:x"}, Value: repository.Increment(2)},
		})
		require.NoError(t, err)
	}
	err = store.UpdateRecord(ctx, "sessions", id, []repository.FieldUpdate{
		{Path: []string{"logs"}, Value: repository.ArrayAppend(map[string]interface{}{"note": "one"})},
	})
	require.NoError(t, err)
	err = store.UpdateRecord(ctx, "sessions", id, []repository.FieldUpdate{
		{Path: []string{"logs"}, Value: repository.ArrayAppend(map[string]interface{}{"note": "two"})},
	})
	require.NoError(t, err)

	rec, err := store.GetRecord(ctx, "sessions", id)
	require.NoError(t, err)
	counts := rec.Data["unreadCounts"].(map[string]interface{})
	assert.Equal(t, int64(3), counts["admin"])
	assert.Equal(t, int64(6), counts["guest:x"])
	assert.Len(t, rec.Data["logs"], 2)
}

func TestMemoryDocumentStore_UpdateMissingRecord(t *testing.T) {
	store := NewMemoryDocumentStore()

	err := store.UpdateRecord(context.Background(), "sessions", "missing", []repository.FieldUpdate{
		{Path: []string{"status"}, Value: "open"},
	})
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestMemoryDocumentStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	id, err := store.CreateRecord(ctx, "sessions", map[string]interface{}{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.UpdateRecord(ctx, "sessions", id, []repository.FieldUpdate{
				{Path: []string{"unreadCounts", "admin"}, Value: repository.Increment(1)},
			})
		}()
	}
	wg.Wait()

	rec, _ := store.GetRecord(ctx, "sessions", id)
	assert.Equal(t, int64(50), rec.Data["unreadCounts"].(map[string]interface{})["admin"])
}

func TestMemoryDocumentStore_Query(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()

	seed := []map[string]interface{}{
		{"participants": []string{"guest:a", "admin"}, "rank": 2, "status": "open"},
		{"participants": []string{"user:b", "admin"}, "rank": 1, "status": "resolved"},
		{"participants": []string{"guest:c", "admin"}, "rank": 3, "status": "open"},
		{"participants": []string{"guest:d", "admin"}, "status": "open"},
	}
	for _, data := range seed {
		_, err := store.CreateRecord(ctx, "sessions", data)
		require.NoError(t, err)
	}

	t.Run("array-contains", func(t *testing.T) {
		records, err := store.QueryRecords(ctx, "sessions", repository.Query{
			Filters: []repository.Filter{{Field: "participants", Op: repository.OpArrayContains, Value: "user:b"}},
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(1), records[0].Data["rank"])
	})

	t.Run("equality with descending order skips records missing the order field", func(t *testing.T) {
		records, err := store.QueryRecords(ctx, "sessions", repository.Query{
			Filters: []repository.Filter{{Field: "status", Op: repository.OpEqual, Value: "open"}},
			OrderBy: []repository.Ordering{{Field: "rank", Desc: true}},
		})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, int64(3), records[0].Data["rank"])
		assert.Equal(t, int64(2), records[1].Data["rank"])
	})

	t.Run("limit and offset", func(t *testing.T) {
		records, err := store.QueryRecords(ctx, "sessions", repository.Query{
			OrderBy: []repository.Ordering{{Field: "rank"}},
			Offset:  1,
			Limit:   1,
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(2), records[0].Data["rank"])
	})
}

func TestMemoryDocumentStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	_, err := store.CreateRecord(ctx, "msgs", map[string]interface{}{"body": "first", "createdAt": repository.ServerTimestamp})
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots [][]repository.Record
	unsubscribe, err := store.Subscribe(ctx, "msgs", repository.Query{
		OrderBy: []repository.Ordering{{Field: "createdAt"}},
	}, func(records []repository.Record, err error) {
		assert.NoError(t, err)
		mu.Lock()
		snapshots = append(snapshots, records)
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, snapshots, 1, "initial snapshot is delivered before Subscribe returns")
	assert.Len(t, snapshots[0], 1)
	mu.Unlock()

	_, err = store.CreateRecord(ctx, "msgs", map[string]interface{}{"body": "second", "createdAt": repository.ServerTimestamp})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := snapshots[len(snapshots)-1]
		return len(last) == 2 && last[1].Data["body"] == "second"
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, store.SubscriberCount("msgs"))

	mu.Lock()
	delivered := len(snapshots)
	mu.Unlock()

	_, err = store.CreateRecord(ctx, "msgs", map[string]interface{}{"body": "third", "createdAt": repository.ServerTimestamp})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, delivered, len(snapshots), "no deliveries after unsubscribe")
	mu.Unlock()
}

func TestMemoryDocumentStore_SubscribeEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryDocumentStore()

	_, err := store.Subscribe(ctx, "msgs", repository.Query{}, func([]repository.Record, error) {})
	require.NoError(t, err)
	assert.Equal(t, 1, store.SubscriberCount("msgs"))

	cancel()
	require.Eventually(t, func() bool {
		return store.SubscriberCount("msgs") == 0
	}, time.Second, 5*time.Millisecond)
}
