package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("nats down")}
	ok := &recordingPublisher{}

	err := Fanout{failing, nil, ok}.Publish("incidents.created", map[string]string{"id": "1"})

	assert.ErrorContains(t, err, "nats down")
	assert.Equal(t, []string{"incidents.created"}, failing.subjects)
	assert.Equal(t, []string{"incidents.created"}, ok.subjects)
}

type countingPublisher struct {
	recordingPublisher
	receivers int
}

func (p *countingPublisher) Deliver(subject string, data interface{}) (int, error) {
	return p.receivers, p.Publish(subject, data)
}

func TestFanoutDeliverCountsReceivers(t *testing.T) {
	plain := &recordingPublisher{}
	counting := &countingPublisher{receivers: 3}
	failing := &recordingPublisher{err: errors.New("nats down")}

	n, err := Fanout{plain, counting, failing, nil}.Deliver("incidents.notifications", 1)

	assert.ErrorContains(t, err, "nats down")
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"incidents.notifications"}, counting.subjects)
}

func TestHubDeliverWithoutClients(t *testing.T) {
	n, err := NewHub().Deliver("incidents.notifications", 1)

	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmptyFanout(t *testing.T) {
	assert.NoError(t, Fanout(nil).Publish("x", 1))
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	n, err := hub.Deliver("cameras.status", map[string]string{"cameraId": "cam1", "status": "incident"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Subject string            `json:"subject"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, "cameras.status", env.Subject)
	assert.Equal(t, "incident", env.Data["status"])
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdown(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.ClientCount())
	assert.NoError(t, hub.Publish("x", 1))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
