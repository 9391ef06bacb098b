package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(4)

	st, ok := store.Get(123)
	assert.False(t, ok)
	assert.True(t, st.Idle())

	// Removing an unknown id is a no-op.
	store.Remove(123)
	assert.Equal(t, 0, store.Len())
}

func TestStoreUpsertDefaultAndRemove(t *testing.T) {
	store := NewStore(4)

	got := store.Upsert(1, func(st *State) {
		assert.Equal(t, ModeNone, st.Mode)
		assert.Nil(t, st.Order)
		st.Mode = ModeOrderFlow
	})
	require.NotNil(t, got.Order)
	assert.Equal(t, StageAwaitingProduct, got.Order.Stage)
	assert.False(t, got.UpdatedAt.IsZero())

	st, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, ModeOrderFlow, st.Mode)

	store.Remove(1)
	_, ok = store.Get(1)
	assert.False(t, ok)
}

func TestStoreIdleResultIsNotStored(t *testing.T) {
	store := NewStore(4)

	store.Upsert(7, func(st *State) {})
	_, ok := store.Get(7)
	assert.False(t, ok)

	store.Upsert(7, func(st *State) { st.Mode = ModePendingOperator })
	assert.Equal(t, 1, store.Len())

	store.Upsert(7, func(st *State) { st.Mode = ModeNone })
	assert.Equal(t, 0, store.Len())
}

func TestStoreOrderOnlyInOrderFlow(t *testing.T) {
	store := NewStore(4)

	got := store.Upsert(5, func(st *State) {
		st.Mode = ModeActiveOperator
		st.Order = &Order{Stage: StageAwaitingPhone}
	})
	assert.Nil(t, got.Order)
	assert.Equal(t, ModeActiveOperator, got.Mode)
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore(4)
	store.Upsert(9, func(st *State) {
		st.Mode = ModeOrderFlow
		st.Order = &Order{Stage: StageAwaitingDelivery, Product: "Widget"}
	})

	st, ok := store.Get(9)
	require.True(t, ok)
	st.Order.Product = "mutated"
	st.Order.Stage = StageAwaitingConfirmation

	again, _ := store.Get(9)
	assert.Equal(t, "Widget", again.Order.Product)
	assert.Equal(t, StageAwaitingDelivery, again.Order.Stage)
}

func TestStoreConcurrentIncrements(t *testing.T) {
	store := NewStore(8)
	const (
		chats   = 16
		perChat = 200
	)

	var wg sync.WaitGroup
	for c := int64(1); c <= chats; c++ {
		for i := 0; i < perChat; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				store.Upsert(id, func(st *State) {
					st.Mode = ModeOrderFlow
					if st.Order == nil {
						st.Order = &Order{}
					}
					st.Order.Product += "x"
				})
			}(c)
		}
	}
	wg.Wait()

	for c := int64(1); c <= chats; c++ {
		st, ok := store.Get(c)
		require.True(t, ok)
		assert.Len(t, st.Order.Product, perChat, "chat %d lost updates", c)
	}
}

func TestStoreSnapshot(t *testing.T) {
	store := NewStore(2)
	store.Upsert(1, func(st *State) { st.Mode = ModePendingOperator })
	store.Upsert(2, func(st *State) { st.Mode = ModeOrderFlow })
	store.Upsert(3, func(st *State) { st.Mode = ModeActiveOperator })

	entries := store.Snapshot(func(st State) bool { return st.Mode.OperatorChat() })
	require.Len(t, entries, 2)
	ids := []int64{entries[0].ChatID, entries[1].ChatID}
	assert.ElementsMatch(t, []int64{1, 3}, ids)

	assert.Len(t, store.Snapshot(nil), 3)
}

func TestNewStoreRoundsShards(t *testing.T) {
	assert.Len(t, NewStore(5).shards, 8)
	assert.Len(t, NewStore(0).shards, DefaultShards)
}
