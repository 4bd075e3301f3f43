package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlt-bridge-server/domain"
)

type mockBroadcaster struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
}

func (m *mockBroadcaster) Register(c domain.Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, c.ID())
}

func (m *mockBroadcaster) Unregister(c domain.Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregistered = append(m.unregistered, c.ID())
}

func (m *mockBroadcaster) Broadcast(frame []byte) {}
func (m *mockBroadcaster) Stats() int             { return 0 }

func (m *mockBroadcaster) unregisteredIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unregistered
}

func TestConn_DeliversBinaryFramesVerbatim(t *testing.T) {
	var upgrader = websocket.Upgrader{}
	broadcaster := &mockBroadcaster{}
	serverConn := make(chan *Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		c := NewConn("consumer-1", ws, broadcaster, 16)
		c.Start()
		serverConn <- c
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	c := <-serverConn
	frame := []byte{0x21, 0x07, 0x00, 0x06, 0xDE, 0xAD}
	require.NoError(t, c.Send(frame))

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, got, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, frame, got, "frame must arrive byte-identical")

	// A closing client is observed by the read pump and unregistered.
	client.Close()
	assert.Eventually(t, func() bool {
		ids := broadcaster.unregisteredIDs()
		return len(ids) == 1 && ids[0] == "consumer-1"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConn_SendFailsWhenBufferFull(t *testing.T) {
	// No write pump draining: the buffer fills immediately.
	c := NewConn("slow", nil, &mockBroadcaster{}, 1)

	require.NoError(t, c.Send([]byte("f1")))
	assert.ErrorIs(t, c.Send([]byte("f2")), ErrSlowConsumer)
}
