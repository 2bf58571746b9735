package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/auth"
	"github.com/ateliercolor/presstrack/internal/status"
)

func testUser() auth.User {
	return auth.User{ID: "u-1", Username: "marie", Role: status.RolePreparer}
}

func TestParseScope(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name    string
		raw     string
		want    Scope
		wantErr bool
	}{
		{name: "all jobs", raw: "jobs:*", want: AllJobsScope()},
		{name: "single job", raw: "jobs:" + jobID.String(), want: JobScope(jobID)},
		{name: "missing prefix", raw: jobID.String(), wantErr: true},
		{name: "bad id", raw: "jobs:not-a-uuid", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScope(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.raw, got.String())
		})
	}
}

func TestSubscribeRequiresAuthentication(t *testing.T) {
	registry := NewSubscriptionRegistry(4)
	conn := registry.Connect()

	err := registry.Subscribe(conn.ID, AllJobsScope())
	require.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, registry.Authenticate(conn.ID, testUser()))
	require.NoError(t, registry.Subscribe(conn.ID, AllJobsScope()))
}

func TestSubscribeUnknownConnection(t *testing.T) {
	registry := NewSubscriptionRegistry(4)
	err := registry.Subscribe(uuid.New(), AllJobsScope())
	require.ErrorIs(t, err, ErrUnknownConnection)
}

func TestDeliverToAllJobsSubscribers(t *testing.T) {
	registry := NewSubscriptionRegistry(4)

	first := registry.Connect()
	second := registry.Connect()
	for _, conn := range []*Connection{first, second} {
		require.NoError(t, registry.Authenticate(conn.ID, testUser()))
		require.NoError(t, registry.Subscribe(conn.ID, AllJobsScope()))
	}

	env := Envelope{Cursor: 1, Event: api.Event{Kind: api.EventJobTransitioned, JobID: uuid.New()}}
	require.Equal(t, 2, registry.deliver(env))

	for _, conn := range []*Connection{first, second} {
		got := <-conn.Outbox()
		require.Equal(t, env, got)
		requireEmpty(t, conn)
	}
}

func TestDeliverFiltersByJobScope(t *testing.T) {
	registry := NewSubscriptionRegistry(4)
	watched := uuid.New()
	other := uuid.New()

	conn := registry.Connect()
	require.NoError(t, registry.Authenticate(conn.ID, testUser()))
	require.NoError(t, registry.Subscribe(conn.ID, JobScope(watched)))

	require.Equal(t, 0, registry.deliver(Envelope{Cursor: 1, Event: api.Event{JobID: other}}))
	require.Equal(t, 1, registry.deliver(Envelope{Cursor: 2, Event: api.Event{JobID: watched}}))

	got := <-conn.Outbox()
	require.Equal(t, watched, got.Event.JobID)
	requireEmpty(t, conn)
}

func TestSubscribeTwiceDeliversOnce(t *testing.T) {
	registry := NewSubscriptionRegistry(4)
	jobID := uuid.New()

	conn := registry.Connect()
	require.NoError(t, registry.Authenticate(conn.ID, testUser()))
	require.NoError(t, registry.Subscribe(conn.ID, JobScope(jobID)))
	require.NoError(t, registry.Subscribe(conn.ID, JobScope(jobID)))

	require.Equal(t, 1, registry.deliver(Envelope{Cursor: 1, Event: api.Event{JobID: jobID}}))
	<-conn.Outbox()
	requireEmpty(t, conn)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	registry := NewSubscriptionRegistry(4)
	jobID := uuid.New()

	conn := registry.Connect()
	require.NoError(t, registry.Authenticate(conn.ID, testUser()))
	require.NoError(t, registry.Subscribe(conn.ID, JobScope(jobID)))
	require.NoError(t, registry.Unsubscribe(conn.ID, JobScope(jobID)))

	require.Equal(t, 0, registry.deliver(Envelope{Cursor: 1, Event: api.Event{JobID: jobID}}))
}

func TestSlowConsumerIsDropped(t *testing.T) {
	registry := NewSubscriptionRegistry(1)

	conn := registry.Connect()
	require.NoError(t, registry.Authenticate(conn.ID, testUser()))
	require.NoError(t, registry.Subscribe(conn.ID, AllJobsScope()))

	require.Equal(t, 1, registry.deliver(Envelope{Cursor: 1, Event: api.Event{JobID: uuid.New()}}))
	// outbox is full now, the second delivery drops the connection
	require.Equal(t, 0, registry.deliver(Envelope{Cursor: 2, Event: api.Event{JobID: uuid.New()}}))
	require.Equal(t, 0, registry.Len())

	// the queued envelope is still readable, then the channel closes
	env, ok := <-conn.Outbox()
	require.True(t, ok)
	require.Equal(t, int64(1), env.Cursor)
	_, ok = <-conn.Outbox()
	require.False(t, ok)
}

func TestDisconnectClosesOutbox(t *testing.T) {
	registry := NewSubscriptionRegistry(4)

	conn := registry.Connect()
	require.Equal(t, 1, registry.Len())

	registry.Disconnect(conn.ID)
	require.Equal(t, 0, registry.Len())

	_, ok := <-conn.Outbox()
	require.False(t, ok)

	// disconnecting twice is harmless
	registry.Disconnect(conn.ID)
}

func requireEmpty(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case env := <-conn.Outbox():
		t.Fatalf("unexpected envelope on outbox: %+v", env)
	default:
	}
}
