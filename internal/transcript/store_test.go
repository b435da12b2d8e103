package transcript

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestAppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "sess-1", Message{Role: "user", Body: "hello", Sequence: 1}))
	require.NoError(t, store.Append(ctx, "sess-1", Message{Role: "bot", Body: "hi there", Sequence: 1}))
	require.NoError(t, store.Append(ctx, "sess-1", Message{Role: "user", Body: "i feel numb", RiskLevel: "MODERATE", Sequence: 2}))

	msgs, err := store.List(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.Equal(t, "bot", msgs[1].Role)
	assert.Equal(t, "MODERATE", msgs[2].RiskLevel)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestListLimitReturnsMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(ctx, "sess-2", Message{Role: "user", Body: fmt.Sprintf("msg %d", i)}))
	}

	msgs, err := store.List(ctx, "sess-2", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg 4", msgs[0].Body)
	assert.Equal(t, "msg 5", msgs[1].Body)
}

func TestListUnknownSessionIsEmpty(t *testing.T) {
	store := newTestStore(t)

	msgs, err := store.List(context.Background(), "nope", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAppendRequiresSessionID(t *testing.T) {
	store := newTestStore(t)

	err := store.Append(context.Background(), "", Message{Body: "x"})
	assert.Error(t, err)
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store

	assert.NoError(t, store.Append(context.Background(), "sess-1", Message{Body: "x"}))

	msgs, err := store.List(context.Background(), "sess-1", 0)
	assert.NoError(t, err)
	assert.Nil(t, msgs)
}

func TestAppendTrimsToCap(t *testing.T) {
	store := newTestStore(t)
	store.maxMessages = 3
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		require.NoError(t, store.Append(ctx, "sess-3", Message{Body: fmt.Sprintf("msg %d", i)}))
	}

	msgs, err := store.List(ctx, "sess-3", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg 4", msgs[0].Body)
}
