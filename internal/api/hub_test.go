package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastDoesNotWaitOnStalledClient(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler(nil))
	defer srv.Close()
	defer hub.Close()

	// never reads
	dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	payload := strings.Repeat("x", 1<<20)
	started := time.Now()
	for range sendQueue * 4 {
		hub.Broadcast("pools", payload)
	}
	assert.Less(t, time.Since(started), time.Second)
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcastReachesReadingClientAlongsideStalledOne(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler(func() []Event {
		return []Event{{Type: "pools", Data: []string{}}}
	}))
	defer srv.Close()
	defer hub.Close()

	dialHub(t, srv)
	reader := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	var ev Event
	require.NoError(t, reader.ReadJSON(&ev))
	assert.Equal(t, "pools", ev.Type)

	for i := range 3 {
		hub.Broadcast("notification", i)
		require.NoError(t, reader.ReadJSON(&ev))
		assert.Equal(t, "notification", ev.Type)
		assert.EqualValues(t, i, ev.Data)
	}
}
