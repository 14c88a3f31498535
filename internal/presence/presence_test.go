package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := NewMirror(client, "test", time.Minute)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	return m, mr
}

func TestMirrorTracksBinding(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := context.Background()

	st, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, st.Online())
	assert.Zero(t, st.LastSeen)

	m.Bound(7, "conn-1", false)
	st, err = m.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, st.Online())
	assert.Equal(t, int64(1700000000), st.LastSeen)
	assert.Equal(t, time.Minute, mr.TTL("test:presence:7"))

	m.Unbound(7, "conn-1")
	st, err = m.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, st.Status)
	assert.Zero(t, mr.TTL("test:presence:7"), "offline keys do not expire")
}

func TestMirrorOnlineKeysExpire(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := context.Background()

	m.Bound(7, "conn-1", false)
	mr.FastForward(2 * time.Minute)

	st, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, st.Online())
}

func TestMirrorRefresh(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := context.Background()

	m.Bound(1, "a", false)
	m.Bound(2, "b", false)
	mr.FastForward(50 * time.Second)

	require.NoError(t, m.Refresh(ctx, []int64{1}))
	mr.FastForward(30 * time.Second)

	one, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, one.Online())
	two, err := m.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, two.Online())

	assert.NoError(t, m.Refresh(ctx, nil))
}

func TestMirrorRunStopsWithContext(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan struct{}, 16)
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond, func() []int64 {
			calls <- struct{}{}
			return []int64{3}
		})
		close(done)
	}()

	// The second call means the first refresh has completed.
	<-calls
	<-calls
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	st, err := m.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, st.Online())
}

func TestMirrorGetRejectsCorruptValue(t *testing.T) {
	m, mr := newTestMirror(t)
	require.NoError(t, mr.Set("test:presence:9", "{not json"))

	_, err := m.Get(context.Background(), 9)
	assert.Error(t, err)
}
