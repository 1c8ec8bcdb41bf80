package relational

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(config.RelationalConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestDeleteByCampaignRemovesOnlyThatCampaign(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	keep := types.NewID()
	drop := types.NewID()

	require.NoError(t, db.InsertPlayerSession(ctx, types.NewID(), drop, "ada"))
	require.NoError(t, db.InsertPlayerSession(ctx, types.NewID(), drop, "grace"))
	require.NoError(t, db.InsertPlayerSession(ctx, types.NewID(), keep, "linus"))
	require.NoError(t, db.InsertProgress(ctx, types.NewID(), drop, types.NewID()))

	deleted, err := db.DeleteByCampaign(ctx, drop)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	remaining, err := db.CountByCampaign(ctx, drop)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	kept, err := db.CountByCampaign(ctx, keep)
	require.NoError(t, err)
	assert.Equal(t, int64(1), kept)
}

func TestDeleteByCampaignEmptyIsNoop(t *testing.T) {
	db := openTestDB(t)

	deleted, err := db.DeleteByCampaign(context.Background(), types.NewID())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, db.Migrate(context.Background()))
}
