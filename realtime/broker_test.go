package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startBroker(t *testing.T) *Broker {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroker(zap.NewNop())
	go b.Run(ctx)
	t.Cleanup(cancel)
	return b
}

func receive(t *testing.T, ch <-chan []byte) Message {
	t.Helper()
	select {
	case data := <-ch:
		var m Message
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Message{}
	}
}

func TestPublishReachesOnlyAddressee(t *testing.T) {
	b := startBroker(t)

	alice, cancelAlice := b.Subscribe(1)
	defer cancelAlice()
	bob, cancelBob := b.Subscribe(2)
	defer cancelBob()

	b.Publish(1, "notification", map[string]string{"message": "hi"})

	m := receive(t, alice)
	assert.Equal(t, "notification", m.Event)
	assert.Equal(t, map[string]interface{}{"message": "hi"}, m.Payload)

	select {
	case <-bob:
		t.Fatal("bob should not receive alice's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	b := startBroker(t)
	ch, cancel := b.Subscribe(7)
	defer cancel()

	for i := 0; i < clientBuffer*3; i++ {
		b.Publish(7, "tick", i)
	}
	require.Eventually(t, func() bool { return len(ch) == clientBuffer }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, b.Connections())
}

func TestCancelClosesChannel(t *testing.T) {
	b := startBroker(t)
	ch, cancel := b.Subscribe(3)
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Connections())
}

func TestServeSSE(t *testing.T) {
	b := startBroker(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.ServeSSE(w, r, 42)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.Connections() == 1 }, time.Second, 10*time.Millisecond)
	b.Publish(42, "notification", "approved")

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.JSONEq(t, `{"event":"notification","payload":"approved"}`, strings.TrimSpace(strings.TrimPrefix(line, "data: ")))
			break
		}
	}
}

func TestServeWS(t *testing.T) {
	b := startBroker(t)
	upgrader := NewUpgrader("http://app.example")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.ServeWS(upgrader, w, r, 9)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	header.Set("Origin", "http://app.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Connections() == 1 }, time.Second, 10*time.Millisecond)
	b.Publish(9, "notification", "rejected")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"notification","payload":"rejected"}`, string(data))
}
