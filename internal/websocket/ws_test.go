package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/dmrelay/internal/auth"
	"github.com/xelth-com/dmrelay/internal/config"
	"github.com/xelth-com/dmrelay/internal/ephemeral"
	"github.com/xelth-com/dmrelay/internal/presence"
)

const testSecret = "itest-secret-1234"

func startRelay(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	cfg := &config.Config{JWTSecret: testSecret, ClientURL: "http://localhost:3000"}
	hub := NewHub(presence.NewRegistry(), ephemeral.NewStore())
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, cfg, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func dialAs(t *testing.T, srv *httptest.Server, userID string) *gws.Conn {
	t.Helper()
	token, err := auth.MintToken(userID, testSecret, time.Hour)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Add("Cookie", auth.CookieName+"="+token)

	conn, _, err := gws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor reads events off the connection until one matches the given
// name, discarding the rest. Fails the test after the deadline.
func waitFor(t *testing.T, conn *gws.Conn, event string) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Event == event {
			return env
		}
	}
}

// waitForRoster reads online-users events until the roster equals want.
func waitForRoster(t *testing.T, conn *gws.Conn, want []string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	sort.Strings(want)
	for time.Now().Before(deadline) {
		env := waitFor(t, conn, EventOnlineUsers)
		var roster []string
		require.NoError(t, json.Unmarshal(env.Data, &roster))
		sort.Strings(roster)
		if len(roster) == len(want) {
			matched := true
			for i := range roster {
				if roster[i] != want[i] {
					matched = false
					break
				}
			}
			if matched {
				return
			}
		}
	}
	t.Fatalf("roster never settled at %v", want)
}

func send(t *testing.T, conn *gws.Conn, env Envelope) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(env))
}

func TestHandshakeRefusedWithoutToken(t *testing.T) {
	srv, _ := startRelay(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRefusedForCrossOrigin(t *testing.T) {
	srv, _ := startRelay(t)
	token, err := auth.MintToken("alice", testSecret, time.Hour)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Add("Cookie", auth.CookieName+"="+token)
	header.Add("Origin", "http://evil.example")

	_, resp, err := gws.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPresenceAndRelayEndToEnd(t *testing.T) {
	srv, _ := startRelay(t)

	alice := dialAs(t, srv, "alice")
	waitForRoster(t, alice, []string{"alice"})

	bob := dialAs(t, srv, "bob")
	waitForRoster(t, alice, []string{"alice", "bob"})
	waitForRoster(t, bob, []string{"alice", "bob"})

	// Alice messages Bob with an ack request.
	send(t, alice, mustEnvelope(t, EventSendMessage, "req-1", SendMessagePayload{
		To: "bob", Content: "hi", ClientID: "c_1",
	}))

	env := waitFor(t, bob, EventReceiveMessage)
	var got Message
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "alice", got.From)
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, "c_1", got.ClientID)
	assert.False(t, got.Ephemeral)

	// Alice gets both the echo and the ack.
	env = waitFor(t, alice, EventReceiveMessage)
	var echo Message
	require.NoError(t, json.Unmarshal(env.Data, &echo))
	assert.Equal(t, got, echo)

	env = waitFor(t, alice, EventAck)
	var a Ack
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, "req-1", a.AckID)
	assert.Equal(t, AckOK, a.Status)

	// Bob toggles ephemeral mode; both sides converge.
	send(t, bob, mustEnvelope(t, EventToggleEphemeral, "", TogglePayload{From: "bob", To: "alice", Enabled: true}))

	env = waitFor(t, alice, EventEphemeralUpdated)
	var u EphemeralUpdate
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, EphemeralUpdate{With: "bob", Enabled: true}, u)

	env = waitFor(t, bob, EventEphemeralUpdated)
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, EphemeralUpdate{With: "alice", Enabled: true}, u)

	// Messages now carry the flag.
	send(t, alice, mustEnvelope(t, EventSendMessage, "req-2", SendMessagePayload{To: "bob", Content: "psst"}))
	env = waitFor(t, bob, EventReceiveMessage)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Ephemeral)

	// Bob disconnects; Alice sees him leave the roster.
	bob.Close()
	waitForRoster(t, alice, []string{"alice"})
}

func TestMessageSavedEndToEnd(t *testing.T) {
	srv, _ := startRelay(t)

	alice := dialAs(t, srv, "alice")
	bob := dialAs(t, srv, "bob")
	waitForRoster(t, bob, []string{"alice", "bob"})

	saved := json.RawMessage(`{"_id":"m_7","senderId":"alice","receiverId":"bob","text":"hi"}`)
	send(t, alice, mustEnvelope(t, EventMessageSaved, "", MessageSavedPayload{
		To: "bob", ClientID: "c_9", SavedMessage: saved,
	}))

	for _, conn := range []*gws.Conn{alice, bob} {
		env := waitFor(t, conn, EventMessageUpdated)
		var u MessageUpdate
		require.NoError(t, json.Unmarshal(env.Data, &u))
		assert.Equal(t, "c_9", u.ClientID)
		assert.JSONEq(t, string(saved), string(u.SavedMessage))
	}
}

func TestTypingEndToEnd(t *testing.T) {
	srv, _ := startRelay(t)

	alice := dialAs(t, srv, "alice")
	bob := dialAs(t, srv, "bob")
	waitForRoster(t, bob, []string{"alice", "bob"})

	send(t, alice, mustEnvelope(t, EventTyping, "", TypingPayload{To: "bob", IsTyping: true}))

	env := waitFor(t, bob, EventTyping)
	var n TypingNotice
	require.NoError(t, json.Unmarshal(env.Data, &n))
	assert.Equal(t, TypingNotice{From: "alice", IsTyping: true}, n)
}
