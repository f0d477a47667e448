package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stock-trading-sim-go/internal/catalog"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func dial(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(httpToWS(url), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) Snapshot {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var s Snapshot
	require.NoError(t, json.Unmarshal(msg, &s))
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func quote(ticker, price string) catalog.Quote {
	p := decimal.RequireFromString(price)
	return catalog.Quote{Ticker: ticker, CurrentPrice: p, InitialPrice: p}
}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	a := dial(t, server.URL)
	b := dial(t, server.URL)
	waitFor(t, func() bool { return hub.Subscribers() == 2 })

	hub.Publish([]catalog.Quote{quote("ACME", "10.50")})

	for _, conn := range []*websocket.Conn{a, b} {
		s := readSnapshot(t, conn)
		assert.Equal(t, "prices", s.Type)
		require.Len(t, s.Quotes, 1)
		assert.Equal(t, "ACME", s.Quotes[0].Ticker)
		assert.True(t, decimal.RequireFromString("10.5").Equal(s.Quotes[0].CurrentPrice))
	}
}

func TestHub_NewSubscriberGetsLastSnapshot(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	hub.Publish([]catalog.Quote{quote("ACME", "1"), quote("BETA", "2")})

	conn := dial(t, server.URL)
	s := readSnapshot(t, conn)
	assert.Len(t, s.Quotes, 2)
}

func TestHub_RemovesClosedSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server.URL)
	waitFor(t, func() bool { return hub.Subscribers() == 1 })

	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return hub.Subscribers() == 0 })
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server.URL)
	waitFor(t, func() bool { return hub.Subscribers() == 1 })

	hub.Close()
	assert.Zero(t, hub.Subscribers())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
