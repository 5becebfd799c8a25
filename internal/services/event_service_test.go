package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventServiceRecordAndRecent(t *testing.T) {
	db := newTestDB(t)
	svc := NewEventService(db, nil)
	ctx := context.Background()

	userID := int64(3)
	require.NoError(t, svc.Record(ctx, "user.update", "info", "User 1 updated the profile of user 3.", &userID))
	require.NoError(t, svc.Record(ctx, "user.login", "info", "User 'alice' logged in.", nil))

	events, err := svc.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		require.NotEmpty(t, event.ID)
	}
}

func TestEventServicePruneOlderThan(t *testing.T) {
	db := newTestDB(t)
	svc := NewEventService(db, nil)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "user.login", "info", "old login", nil))

	// Everything recorded so far is older than a future cutoff.
	pruned, err := svc.PruneOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)

	events, err := svc.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, events)
}
