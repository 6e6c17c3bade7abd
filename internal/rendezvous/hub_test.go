package rendezvous

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return hub, srv.URL
}

func wsURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/ws"
}

func dialClient(t *testing.T, base, id, name string) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(base), PeerInfo{PeerID: id, Name: name}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e, ok := <-c.Events():
		require.True(t, ok, "events closed")
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubHealth(t *testing.T) {
	_, base := newTestHub(t)

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Signaling Server Running", string(body))
}

func TestPeersSeeEachOther(t *testing.T) {
	_, base := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialClient(t, base, "a1", "Brave Fox")
	bob := dialClient(t, base, "b2", "Calm Otter")

	p, err := alice.WaitForPeer(ctx, "calm otter")
	require.NoError(t, err)
	assert.Equal(t, "b2", p.PeerID)

	p, err = bob.WaitForPeer(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Brave Fox", p.Name)

	assert.Equal(t, []PeerInfo{{PeerID: "b2", Name: "Calm Otter"}}, alice.Peers())

	e := nextEvent(t, alice)
	assert.Equal(t, PeerJoined, e.Type)
	assert.Equal(t, "b2", e.Peer.PeerID)

	require.NoError(t, bob.Close())
	for {
		e := nextEvent(t, alice)
		if e.Type == PeerLeft {
			assert.Equal(t, "b2", e.Peer.PeerID)
			break
		}
	}
	_, ok := alice.FindPeer("b2")
	assert.False(t, ok)
}

func TestSignalRelay(t *testing.T) {
	_, base := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialClient(t, base, "a1", "Brave Fox")
	bob := dialClient(t, base, "b2", "Calm Otter")
	_, err := alice.WaitForPeer(ctx, "b2")
	require.NoError(t, err)

	require.NoError(t, alice.SendSignal(ctx, "b2", []byte(`{"sdp":"offer"}`)))

	select {
	case sig := <-bob.RecvSignal():
		assert.Equal(t, "a1", sig.PeerID)
		assert.Equal(t, `{"sdp":"offer"}`, string(sig.Payload))
	case <-ctx.Done():
		t.Fatal("timed out waiting for signal")
	}
}

func TestWaitForPeerTimesOut(t *testing.T) {
	_, base := newTestHub(t)
	alice := dialClient(t, base, "a1", "Brave Fox")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := alice.WaitForPeer(ctx, "nobody")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRoomsAreSeparatedByAddress(t *testing.T) {
	hub, base := newTestHub(t)

	join := func(id, ip string) *websocket.Conn {
		header := http.Header{}
		header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(base), header)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		require.NoError(t, conn.WriteJSON(message{Type: typeJoin, PeerID: id, Name: id}))

		var msg message
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, typeExistingPeers, msg.Type)
		return conn
	}

	join("home-1", "203.0.113.5")
	join("office-1", "198.51.100.7")
	home2 := join("home-2", "203.0.113.5")

	require.Eventually(t, func() bool { return hub.Peers() == 3 }, 5*time.Second, 10*time.Millisecond)

	// office-1 is in another room and must not be reachable
	require.NoError(t, home2.WriteJSON(message{Type: typeSignal, Target: "office-1", Payload: []byte("x")}))
	var msg message
	require.NoError(t, home2.ReadJSON(&msg))
	assert.Equal(t, typeError, msg.Type)
	assert.Equal(t, "office-1", msg.Target)
}

func TestExistingPeersOnJoin(t *testing.T) {
	_, base := newTestHub(t)
	dialClient(t, base, "a1", "Brave Fox")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(message{Type: typeJoin, PeerID: "b2"}))

	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, typeExistingPeers, msg.Type)
	assert.Equal(t, []PeerInfo{{PeerID: "a1", Name: "Brave Fox"}}, msg.Peers)
}

func TestJoinRequired(t *testing.T) {
	_, base := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(message{Type: typeSignal, Target: "x"}))
	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, typeError, msg.Type)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestRandomName(t *testing.T) {
	for range 20 {
		parts := strings.Split(RandomName(), " ")
		require.Len(t, parts, 2)
		assert.NotEmpty(t, parts[0])
		assert.NotEmpty(t, parts[1])
	}
}
