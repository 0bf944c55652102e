package echoapi_test

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

	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/services/events"
	testutil "github.com/unistock/stockroom/tests"
)

func Test_eventsApi(t *testing.T) {
	app := setup(t)
	_, keeper, staff, _ := app.users(t)
	keeperToken := getToken(t, app.conf, keeper)
	fx := testutil.CreateFixtures(t, app.orgRepo, app.catRepo)
	testutil.CreateStockIn(t, app.stockRepo, fx.Item.ID, fx.Supplier.ID, "", 10, "1.00", time.Now())

	srv := httptest.NewServer(app.server)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws"

	t.Run("token required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("staff cannot subscribe", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, app.conf, staff), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?topics=stock_out.&token="+keeperToken, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := app.do(http.MethodPost, "/v1/stock-outs", keeperToken,
		marshalObj(t, stock.NewStockOut{ItemID: fx.Item.ID, OfficeID: fx.Office.ID, Quantity: 2, IssuedTo: "Registry"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	so := decode[stock.StockOut](t, rec)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt events.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, stock.TopicStockOutCreated, evt.Topic)
	assert.Equal(t, so.ID, evt.Data.(map[string]interface{})["id"])
}
