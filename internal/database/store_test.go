package database_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/database"
)

func newStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func TestRecordRedemptionIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	entry := func(by string) *database.Redemption {
		return &database.Redemption{
			CheckCode:   "c1A2b3C4d5",
			BotKind:     "cryptobot",
			Amount:      sql.NullFloat64{Float64: 1.5, Valid: true},
			Currency:    "USD",
			ActivatedBy: by,
			SourceChat:  "Drops",
			MessageID:   42,
		}
	}

	inserted, err := store.RecordRedemption(ctx, entry("acc-1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.RecordRedemption(ctx, entry("acc-2"))
	require.NoError(t, err, "a duplicate code must not be an error")
	assert.False(t, inserted)

	n, err := store.CountRedemptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	exists, err := store.Exists(ctx, "c1A2b3C4d5")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "cMissing0000")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecordRedemptionRejectsEmptyCode(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	_, err := store.RecordRedemption(context.Background(), &database.Redemption{BotKind: "xrocket"})
	assert.Error(t, err)
	_, err = store.RecordRedemption(context.Background(), nil)
	assert.Error(t, err)
}

func TestBumpStatsAccumulates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.BumpStats(ctx, "acc-1", "cryptobot", 2.5, "USD"))
	}

	stats, err := store.GetStats(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(3), stats[0].ChecksCount)
	assert.InDelta(t, 7.5, stats[0].TotalAmount, 1e-9)
	assert.Equal(t, "USD", stats[0].Currency)
	assert.False(t, stats[0].LastUpdated.IsZero())
}

func TestGetStatsGlobalOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.BumpStats(ctx, "acc-1", "cryptobot", 1, "USD"))
	require.NoError(t, store.BumpStats(ctx, "acc-2", "xrocket", 1, "RUB"))
	require.NoError(t, store.BumpStats(ctx, "acc-2", "xrocket", 3, "RUB"))
	require.NoError(t, store.BumpStats(ctx, "acc-3", "cryptobot", 0, "UNKNOWN"))

	stats, err := store.GetStats(ctx, "")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "acc-2", stats[0].AccountID)
	assert.Equal(t, int64(2), stats[0].ChecksCount)

	agg, err := store.GetAggregate(ctx)
	require.NoError(t, err)
	require.Contains(t, agg, "cryptobot")
	require.Contains(t, agg, "xrocket")
	assert.Equal(t, int64(2), agg["cryptobot"].TotalCount)
	assert.Equal(t, int64(2), agg["cryptobot"].UniqueAccounts)
	assert.InDelta(t, 4.0, agg["xrocket"].TotalAmount, 1e-9)
	assert.Equal(t, int64(1), agg["xrocket"].UniqueAccounts)
}

func TestPingAndMaintenance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.RunSQLMaintenance(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.RunSQLMaintenance(cancelled), context.Canceled)
}

func TestApplyMigrationsIsRepeatable(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(":memory:")
	require.NoError(t, err)
	defer database.CloseDB(db)

	assert.NoError(t, database.ApplyMigrations(db.DB))
	assert.Error(t, database.ApplyMigrations(nil))
}
