package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store/sqlstore"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	id string

	mu       sync.Mutex
	sent     [][]byte
	failSend bool
	closed   bool
}

var fakeSeq atomic.Int64

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: fmt.Sprintf("fake-%d", fakeSeq.Add(1))}
}

func (f *fakeTransport) ID() string { return f.id }

func (f *fakeTransport) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend || f.closed {
		return errors.New("send failed")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// frames decodes everything sent so far.
func (f *fakeTransport) frames(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.sent))
	for _, data := range f.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	return out
}

// take returns the frames sent so far and forgets them.
func (f *fakeTransport) take(t *testing.T) []map[string]any {
	t.Helper()
	frames := f.frames(t)
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
	return frames
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *sqlstore.SQLStore
	registry *Registry
	d        *Dispatcher
}

func newHarness(t *testing.T, observers ...Observer) *harness {
	st, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := NewRegistry(observers...)
	return &harness{t: t, ctx: context.Background(), store: st, registry: reg, d: NewDispatcher(st, reg)}
}

func (h *harness) user(name string) *models.User {
	h.t.Helper()
	u := &models.User{Username: name, PasswordHash: "hash", IsActive: true}
	require.NoError(h.t, h.store.CreateUser(h.ctx, u))
	return u
}

func (h *harness) connect(u *models.User) *fakeTransport {
	ft := newFakeTransport()
	h.registry.Bind(u.ID, ft)
	return ft
}

func (h *harness) send(u *models.User, format string, args ...any) {
	h.d.Dispatch(h.ctx, u.ID, []byte(fmt.Sprintf(format, args...)))
}

// num reads a JSON number field as int64.
func num(t *testing.T, frame map[string]any, key string) int64 {
	t.Helper()
	v, ok := frame[key].(float64)
	require.True(t, ok, "field %q is not a number: %v", key, frame[key])
	return int64(v)
}
