package memory

import (
	"context"
	"testing"
	"time"

	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersCreateRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &models.User{Email: "a@x.com", Name: "A", PasswordHash: "h1"}
	require.NoError(t, s.Users.Create(ctx, first))

	err := s.Users.Create(ctx, &models.User{Email: "a@x.com", Name: "B", PasswordHash: "h2"})
	require.Error(t, err)
	assert.True(t, database.IsConflict(err))

	stored, err := s.Users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "A", stored.Name)
	assert.Equal(t, "h1", stored.PasswordHash)
	assert.Equal(t, models.RoleUser, stored.Role)
}

func TestWatchlistReplace(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &models.User{Email: "w@x.com", Name: "W"}
	require.NoError(t, s.Users.Create(ctx, u))

	list, err := s.Users.GetWatchlist(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Users.SetWatchlist(ctx, u.ID, []string{"Kotak Securities", "Angel One"}))
	list, err = s.Users.GetWatchlist(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kotak Securities", "Angel One"}, list)

	err = s.Users.SetWatchlist(ctx, 999, nil)
	assert.True(t, database.IsNotFound(err))
}

func TestCallsListingOrderAndJoin(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &models.User{Email: "c@x.com", Name: "Caller"}
	require.NoError(t, s.Users.Create(ctx, u))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	defer func() { clock = time.Now }()

	pending := &models.Call{Stock: "TCS", Broker: "Angel One", CreatorID: u.ID, Status: models.StatusPendingVerification}
	approved := &models.Call{Stock: "INFY", Broker: "Angel One", CreatorID: u.ID, Status: models.StatusApproved}
	other := &models.Call{Stock: "SBIN", Broker: "SBI Securities", CreatorID: u.ID, Status: models.StatusRejected}
	for _, c := range []*models.Call{pending, approved, other} {
		require.NoError(t, s.Calls.Create(ctx, c))
	}

	mine, err := s.Calls.ListByCreator(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, other.ID, mine[0].ID)
	assert.Equal(t, pending.ID, mine[2].ID)

	public, err := s.Calls.ListExcludingStatus(ctx, models.StatusPendingVerification, "Angel One")
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "INFY", public[0].Stock)
	require.NotNil(t, public[0].Creator)
	assert.Equal(t, "Caller", public[0].Creator.Name)

	queue, err := s.Calls.ListByStatus(ctx, models.StatusPendingVerification)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "c@x.com", queue[0].Creator.Email)
}

func TestCallsAreCopiedOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := &models.Call{Stock: "TCS", Tags: []string{"it"}}
	require.NoError(t, s.Calls.Create(ctx, c))

	c.Tags[0] = "mutated"
	got, err := s.Calls.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "it", got.Tags[0])

	_, err = s.Calls.FindByID(ctx, 42)
	assert.True(t, database.IsNotFound(err))
}

func TestNotificationsMarkReadRequiresOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	n := &models.Notification{UserID: 1, CallID: 1, Type: models.NotificationTypeCallStatus, Message: "hi"}
	require.NoError(t, s.Notifications.Create(ctx, n))

	_, err := s.Notifications.MarkRead(ctx, 2, n.ID)
	assert.True(t, database.IsNotFound(err))

	marked, err := s.Notifications.MarkRead(ctx, 1, n.ID)
	require.NoError(t, err)
	assert.True(t, marked.Read)
}

func TestTokensPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Tokens.Revoke(ctx, "old", now.Add(-time.Minute)))
	require.NoError(t, s.Tokens.Revoke(ctx, "live", now.Add(time.Hour)))

	revoked, err := s.Tokens.IsRevoked(ctx, "old", now)
	require.NoError(t, err)
	assert.False(t, revoked, "expired entries count as absent")

	revoked, err = s.Tokens.IsRevoked(ctx, "live", now)
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := s.Tokens.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, s.Tokens.Len())
}
