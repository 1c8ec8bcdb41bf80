package resume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := types.NewID()

	require.NoError(t, store.Save(ctx, id, []byte(`{"phase":"core"}`)))

	data, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"core"}`, string(data))

	// Save replaces the previous snapshot.
	require.NoError(t, store.Save(ctx, id, []byte(`{"phase":"quests"}`)))
	data, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"quests"}`, string(data))
}

func TestMemoryStoreMissingSnapshot(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), types.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := types.NewID()

	require.NoError(t, store.Save(ctx, id, []byte("x")))
	require.NoError(t, store.Delete(ctx, id))

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent snapshot is a noop.
	assert.NoError(t, store.Delete(ctx, id))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := types.NewID()

	original := []byte("original")
	require.NoError(t, store.Save(ctx, id, original))
	original[0] = 'X'

	data, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	data[0] = 'Y'
	again, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}
