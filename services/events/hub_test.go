package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	testutil "github.com/unistock/stockroom/tests"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dial(t *testing.T, hub *Hub, query string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r)
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub(testutil.NopLogger{})
	all, closeAll := dial(t, hub, "")
	defer closeAll()
	ledgerOnly, closeLedger := dial(t, hub, "topics=ledger.")
	defer closeLedger()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("stock_out.created", map[string]string{"id": "so-1"})
	hub.Publish("ledger.block_appended", map[string]int{"index": 0})

	evt := readEvent(t, all)
	assert.Equal(t, "stock_out.created", evt.Topic)
	assert.Equal(t, map[string]interface{}{"id": "so-1"}, evt.Data)
	assert.Equal(t, "ledger.block_appended", readEvent(t, all).Topic)

	// the filtered client only gets the ledger event
	assert.Equal(t, "ledger.block_appended", readEvent(t, ledgerOnly).Topic)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ClientLeaves(t *testing.T) {
	hub := NewHub(testutil.NopLogger{})
	defer hub.Close()

	conn, closeConn := dial(t, hub, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	closeConn()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish("stock_out.created", nil) // no clients, no panic
}
