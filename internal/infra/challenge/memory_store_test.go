package challenge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archer/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TakeIsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "redirect:result:1", []byte("payload"), time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "redirect:result:1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	_, err := store.Get(ctx, "redirect:result:1")
	assert.True(t, errors.Is(err, repository.ErrChallengeNotFound))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(ctx, "flow:a", []byte("x"), time.Minute))
	got, err := store.Get(ctx, "flow:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	clock = clock.Add(time.Minute)
	_, err = store.Get(ctx, "flow:a")
	assert.True(t, errors.Is(err, repository.ErrChallengeNotFound))
	assert.Zero(t, store.Len())
}

func TestMemoryStore_PutRejectsNonPositiveTTL(t *testing.T) {
	err := NewMemoryStore().Put(context.Background(), "k", nil, 0)
	assert.Error(t, err)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Put(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, store.Delete(ctx, "a", "b", "missing"))
	assert.Zero(t, store.Len())
}

func TestMemoryStore_PutSweepsAbandonedEntries(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(ctx, "flow:a", []byte("a"), time.Minute))
	require.NoError(t, store.Put(ctx, "flow:b", []byte("b"), 10*time.Minute))

	// Neither key is read again.
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, store.Put(ctx, "flow:c", []byte("c"), time.Minute))

	assert.Len(t, store.entries, 2)
	assert.NotContains(t, store.entries, "flow:a")
	assert.Contains(t, store.entries, "flow:b")
}
