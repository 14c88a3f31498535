package ws

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pliu/chatvideo/internal/auth"
	"github.com/pliu/chatvideo/internal/config"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type serverFixture struct {
	*harness
	issuer *auth.Issuer
	url    string
}

func newServerFixture(t *testing.T) *serverFixture {
	h := newHarness(t)
	cfg := config.WSConfig{
		PingInterval:   time.Second,
		PongTimeout:    5 * time.Second,
		WriteTimeout:   time.Second,
		MaxMessageSize: 64 * 1024,
	}
	srv := NewServer(h.registry, h.d, auth.NewVerifier(testSecret, h.store), cfg)

	r := mux.NewRouter()
	r.HandleFunc("/api/messages/ws/{user_id}", srv.ServeWs)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	t.Cleanup(h.registry.CloseAll)

	return &serverFixture{
		harness: h,
		issuer:  auth.NewIssuer(testSecret, time.Minute),
		url:     "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/messages/ws/",
	}
}

func (f *serverFixture) dial(t *testing.T, userID int64, token string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s%d?token=%s", f.url, userID, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *serverFixture) token(u *models.User) string {
	f.t.Helper()
	tok, err := f.issuer.Issue(u)
	require.NoError(f.t, err)
	return tok
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func expectClose(t *testing.T, c *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, code), "unexpected close: %v", err)
}

func TestServeWsConnectsAndRoutes(t *testing.T) {
	f := newServerFixture(t)
	alice, bob := f.user("alice"), f.user("bob")

	aliceConn := f.dial(t, alice.ID, f.token(alice))
	connected := readFrame(t, aliceConn)
	assert.Equal(t, "connected", connected["type"])
	assert.Equal(t, alice.ID, num(t, connected, "user_id"))

	bobConn := f.dial(t, bob.ID, f.token(bob))
	readFrame(t, bobConn)

	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage,
		[]byte(fmt.Sprintf(`{"type":"message","to":%d,"content":"over the wire"}`, bob.ID))))

	got := readFrame(t, bobConn)
	assert.Equal(t, "message", got["type"])
	assert.Equal(t, "over the wire", got["content"])
	echo := readFrame(t, aliceConn)
	assert.Equal(t, got["id"], echo["id"])
}

func TestServeWsIgnoresBadFrames(t *testing.T) {
	f := newServerFixture(t)
	alice, bob := f.user("alice"), f.user("bob")
	aliceConn := f.dial(t, alice.ID, f.token(alice))
	readFrame(t, aliceConn)
	bobConn := f.dial(t, bob.ID, f.token(bob))
	readFrame(t, bobConn)

	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))
	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage,
		[]byte(fmt.Sprintf(`{"type":"typing","to":%d}`, bob.ID))))

	got := readFrame(t, bobConn)
	assert.Equal(t, "typing", got["type"])
	assert.Equal(t, alice.ID, num(t, got, "from"))
}

func TestServeWsRejectsBadCredentials(t *testing.T) {
	f := newServerFixture(t)
	alice, bob := f.user("alice"), f.user("bob")

	tests := []struct {
		name   string
		userID int64
		token  string
	}{
		{"garbage token", alice.ID, "not-a-jwt"},
		{"missing token", alice.ID, ""},
		{"token of another user", bob.ID, f.token(alice)},
		{"wrong key", alice.ID, func() string {
			tok, err := auth.NewIssuer("other-secret", time.Minute).Issue(alice)
			require.NoError(t, err)
			return tok
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.dial(t, tt.userID, tt.token)
			expectClose(t, c, websocket.ClosePolicyViolation)
		})
	}
	assert.Zero(t, f.registry.Count())
}

func TestServeWsRejectsInactiveUser(t *testing.T) {
	f := newServerFixture(t)
	u := &models.User{Username: "ghost", PasswordHash: "hash", IsActive: false}
	require.NoError(t, f.store.CreateUser(f.ctx, u))

	c := f.dial(t, u.ID, f.token(u))
	expectClose(t, c, websocket.ClosePolicyViolation)
	assert.False(t, f.registry.Online(u.ID))
}

func TestServeWsNewConnectionReplacesOld(t *testing.T) {
	f := newServerFixture(t)
	alice := f.user("alice")

	first := f.dial(t, alice.ID, f.token(alice))
	readFrame(t, first)
	second := f.dial(t, alice.ID, f.token(alice))
	readFrame(t, second)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "the superseded connection is closed")

	require.True(t, f.registry.Deliver(alice.ID, Connected{Type: TypeConnected, UserID: alice.ID}))
	assert.Equal(t, "connected", readFrame(t, second)["type"])
}

func TestServeWsReleasesOnDisconnect(t *testing.T) {
	f := newServerFixture(t)
	alice := f.user("alice")

	c := f.dial(t, alice.ID, f.token(alice))
	readFrame(t, c)
	require.True(t, f.registry.Online(alice.ID))

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return !f.registry.Online(alice.ID) }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{cfg: config.WSConfig{AllowedOrigins: []string{"https://chat.example.com", "localhost:3000"}}}

	for origin, want := range map[string]bool{
		"":                         true,
		"https://chat.example.com": true,
		"http://localhost:3000":    true,
		"https://evil.example.com": false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/api/messages/ws/1", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, s.checkOrigin(r), origin)
	}

	open := &Server{}
	r := httptest.NewRequest(http.MethodGet, "/api/messages/ws/1", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	assert.True(t, open.checkOrigin(r))
}
