package activitysink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/activitysink"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamClient struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeStreamClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestRedisStreamSinkRecord(t *testing.T) {
	client := &fakeStreamClient{}
	sink := activitysink.NewRedisStreamSink(client, activitysink.WithMaxLen(1000))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := sink.Record(context.Background(), accounts.ActivityEvent{
		EventType:  accounts.ActivityEventAccountInactivated,
		Actor:      accounts.ActorRef{ID: "admin-1", Type: accounts.RoleSuperAdmin},
		AccountID:  "acc-1",
		FromStatus: accounts.StatusActive,
		ToStatus:   accounts.StatusInactive,
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	args := client.calls[0]
	assert.Equal(t, activitysink.DefaultStream, args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(accounts.ActivityEventAccountInactivated), values["verb"])
	assert.Equal(t, "admin-1", values["actor"])
	assert.Equal(t, "acc-1", values["subject"])
	assert.Equal(t, "INACTIVE", values["status_to"])
	assert.Equal(t, "accounts", values["source"])
	assert.Equal(t, at.Format(time.RFC3339Nano), values["at"])
}

func TestRedisStreamSinkCustomStream(t *testing.T) {
	client := &fakeStreamClient{}
	sink := activitysink.NewRedisStreamSink(client,
		activitysink.WithStream("audit"),
		activitysink.WithMapOptions(activitymap.WithSource("admin")),
	)

	require.NoError(t, sink.Record(context.Background(), accounts.ActivityEvent{
		EventType: accounts.ActivityEventPractitionerRejected,
		AccountID: "acc-2",
		Metadata:  map[string]any{"reapply_token": "raw"},
	}))
	require.Len(t, client.calls, 1)
	assert.Equal(t, "audit", client.calls[0].Stream)
	assert.Zero(t, client.calls[0].MaxLen)

	values := client.calls[0].Values.(map[string]any)
	assert.Equal(t, "admin", values["source"])
	assert.Equal(t, activitymap.Redacted, values["attr.reapply_token"])
}

func TestRedisStreamSinkPropagatesClientError(t *testing.T) {
	client := &fakeStreamClient{err: errors.New("connection refused")}
	sink := activitysink.NewRedisStreamSink(client)

	err := sink.Record(context.Background(), accounts.ActivityEvent{EventType: accounts.ActivityEventLoginFailure})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append activity record")
}

func TestRedisStreamSinkNilClient(t *testing.T) {
	sink := activitysink.NewRedisStreamSink(nil)
	assert.NoError(t, sink.Record(context.Background(), accounts.ActivityEvent{}))
}
