package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/roundup/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	clock := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return j
}

func transfer(uid string, minor int64, currency string) model.TransferRequest {
	return model.TransferRequest{
		AccountUID:  "A1",
		GoalUID:     "G1",
		TransferUID: uid,
		Amount:      model.Amount{Currency: currency, MinorUnits: minor},
	}
}

func TestJournal_RecordAndList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordTransfer(ctx, transfer("t1", 70, "GBP"), 0, errors.New("starling: credit savings goal: status 503")))
	require.NoError(t, j.RecordTransfer(ctx, transfer("t2", 70, "GBP"), 0, nil))
	require.NoError(t, j.RecordTransfer(ctx, transfer("t3", 71, "GBP"), 1, nil))

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "t3", entries[0].TransferUID)
	assert.Equal(t, 1, entries[0].Week)
	assert.True(t, entries[0].Succeeded())
	assert.Equal(t, model.Amount{Currency: "GBP", MinorUnits: 71}, entries[0].Amount)

	failed := entries[2]
	assert.Equal(t, "t1", failed.TransferUID)
	assert.False(t, failed.Succeeded())
	assert.Equal(t, OutcomeFailed, failed.Outcome)
	assert.Contains(t, failed.Error, "status 503")
	assert.True(t, failed.RecordedAt.Before(entries[0].RecordedAt))
}

func TestJournal_ListLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, j.RecordTransfer(ctx, transfer(uid, 10, "GBP"), 0, nil))
	}

	entries, err := j.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].TransferUID)
	assert.Equal(t, "b", entries[1].TransferUID)
}

func TestJournal_DuplicateKeyRejected(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordTransfer(ctx, transfer("dup", 10, "GBP"), 0, nil))
	assert.Error(t, j.RecordTransfer(ctx, transfer("dup", 10, "GBP"), 0, nil))
}

func TestJournal_RequiresTransferUID(t *testing.T) {
	j := openTestJournal(t)
	assert.Error(t, j.RecordTransfer(context.Background(), transfer("", 10, "GBP"), 0, nil))
}

func TestJournal_Totals(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordTransfer(ctx, transfer("t1", 70, "GBP"), 0, nil))
	require.NoError(t, j.RecordTransfer(ctx, transfer("t2", 71, "GBP"), 1, nil))
	require.NoError(t, j.RecordTransfer(ctx, transfer("t3", 50, "GBP"), 0, errors.New("boom")))
	require.NoError(t, j.RecordTransfer(ctx, transfer("t4", 20, "EUR"), 0, nil))

	totals, err := j.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, totals.Attempts)
	assert.Equal(t, 3, totals.Succeeded)
	assert.Equal(t, map[string]int64{"GBP": 141, "EUR": 20}, totals.MinorUnits)
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.RecordTransfer(ctx, transfer("t1", 70, "GBP"), 0, nil))
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
