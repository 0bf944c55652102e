package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
	testutil "github.com/unistock/stockroom/tests"
)

func Test_requestApi_deadStockRequests(t *testing.T) {
	app := setup(t)
	admin, keeper, staff, _ := app.users(t)
	keeperToken := getToken(t, app.conf, keeper)
	staffToken := getToken(t, app.conf, staff)
	fx := testutil.CreateFixtures(t, app.orgRepo, app.catRepo)
	testutil.CreateStockIn(t, app.stockRepo, fx.Item.ID, fx.Supplier.ID, "", 5, "1.00", time.Now())

	app.run(t, []httpTest{
		{
			name: "reason required", method: http.MethodPost, path: "/v1/dead-stock-requests", token: staffToken,
			body:     marshalObj(t, stock.NewDeadStockRequest{ItemID: fx.Item.ID, Quantity: 1, Reason: "  "}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "staff cannot declare dead stock", method: http.MethodPost, path: "/v1/dead-stocks", token: staffToken,
			body:     marshalObj(t, stock.NewDeadStock{ItemID: fx.Item.ID, Quantity: 1, Reason: "broken"}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "storekeeper goes through requests", method: http.MethodPost, path: "/v1/dead-stocks", token: keeperToken,
			body:     marshalObj(t, stock.NewDeadStock{ItemID: fx.Item.ID, Quantity: 1, Reason: "broken"}),
			wantCode: http.StatusForbidden,
		},
	})

	create := func(qty int) stock.DeadStockRequest {
		rec := app.do(http.MethodPost, "/v1/dead-stock-requests", staffToken,
			marshalObj(t, stock.NewDeadStockRequest{ItemID: fx.Item.ID, Quantity: qty, Reason: "water damage"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[stock.DeadStockRequest](t, rec)
	}
	approved, rejected, tooMany := create(2), create(1), create(9)
	assert.Equal(t, stock.StatusPending, approved.Status)
	assert.Equal(t, staff.ID, approved.RequestedBy)

	app.run(t, []httpTest{
		{
			name: "staff cannot review", method: http.MethodPost, path: "/v1/dead-stock-requests/" + approved.ID + "/approve",
			token: staffToken, body: []byte(`{}`), wantCode: http.StatusForbidden,
		},
		{
			name: "cannot approve more than available", method: http.MethodPost, path: "/v1/dead-stock-requests/" + tooMany.ID + "/approve",
			token: keeperToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"quantity": "insufficient stock: 5 available, 9 requested"}`),
		},
		{name: "bad status filter", path: "/v1/dead-stock-requests?status=lost", token: keeperToken, wantCode: http.StatusBadRequest},
	})

	rec := app.do(http.MethodPost, "/v1/dead-stock-requests/"+approved.ID+"/approve", keeperToken, []byte(`{"note": "ok"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved = decode[stock.DeadStockRequest](t, rec)
	assert.Equal(t, stock.StatusApproved, approved.Status)
	assert.Equal(t, "ok", approved.ReviewNote)

	rec = app.do(http.MethodPost, "/v1/dead-stock-requests/"+rejected.ID+"/reject", keeperToken, []byte(`{"note": "still usable"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, stock.StatusRejected, decode[stock.DeadStockRequest](t, rec).Status)

	rec = app.do(http.MethodPost, "/v1/dead-stock-requests/"+approved.ID+"/reject", keeperToken, []byte(`{}`))
	checkCodeAndData(t, http.StatusBadRequest, marshalObj(t, httpErr{Error: "only pending requests can be reviewed"}), rec)

	// the approval declared the dead stock
	rec = app.do(http.MethodGet, "/v1/dead-stocks?item_id="+fx.Item.ID, keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dead := decode[core.Page[stock.DeadStock]](t, rec)
	require.Equal(t, 1, dead.Count)
	assert.Equal(t, 2, dead.Results[0].Quantity)
	assert.Equal(t, approved.ID, dead.Results[0].RequestID.String)

	rec = app.do(http.MethodGet, "/v1/current-stock/"+fx.Item.ID, keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[stock.CurrentStock](t, rec).Balance)

	rec = app.do(http.MethodPost, "/v1/dead-stocks", getToken(t, app.conf, admin),
		marshalObj(t, stock.NewDeadStock{ItemID: fx.Item.ID, Quantity: 1, Reason: "broken"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, decode[stock.DeadStock](t, rec).RequestID.Valid)

	rec = app.do(http.MethodGet, "/v1/dead-stock-requests?status=pending", keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pending := decode[core.Page[stock.DeadStockRequest]](t, rec)
	require.Equal(t, 1, pending.Count)
	assert.Equal(t, tooMany.ID, pending.Results[0].ID)
}

func Test_requestApi_stockInRequests(t *testing.T) {
	app := setup(t)
	_, keeper, staff, _ := app.users(t)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other1", "other@test.cd", "", []string{"staff:"}, true)
	keeperToken := getToken(t, app.conf, keeper)
	staffToken := getToken(t, app.conf, staff)
	fx := testutil.CreateFixtures(t, app.orgRepo, app.catRepo)
	testutil.CreateStockIn(t, app.stockRepo, fx.Item.ID, fx.Supplier.ID, "", 10, "1.00", time.Now())

	rec := app.do(http.MethodPost, "/v1/stock-in-requests", staffToken,
		marshalObj(t, stock.NewStockInRequest{ItemID: fx.Item.ID, OfficeID: fx.Office.ID, Quantity: 3, Purpose: "exams"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[stock.StockInRequest](t, rec)
	assert.Equal(t, "Lab 1", req.OfficeName)

	rec = app.do(http.MethodPost, "/v1/stock-in-requests", getToken(t, app.conf, other),
		marshalObj(t, stock.NewStockInRequest{ItemID: fx.Item.ID, OfficeID: fx.Office.ID, Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	othersReq := decode[stock.StockInRequest](t, rec)

	t.Run("staff only see their requests", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/stock-in-requests", staffToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decode[core.Page[stock.StockInRequest]](t, rec)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, req.ID, page.Results[0].ID)

		rec = app.do(http.MethodGet, "/v1/stock-in-requests/"+othersReq.ID, staffToken)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
	t.Run("storekeepers see every request", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/stock-in-requests?ordering=quantity", keeperToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decode[core.Page[stock.StockInRequest]](t, rec)
		require.Equal(t, 2, page.Count)
		assert.Equal(t, othersReq.ID, page.Results[0].ID)
	})

	// approving issues the stock to the office
	rec = app.do(http.MethodPost, "/v1/stock-in-requests/"+req.ID+"/approve", keeperToken, []byte(`{}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	req = decode[stock.StockInRequest](t, rec)
	assert.Equal(t, stock.StatusApproved, req.Status)
	require.True(t, req.StockOutID.Valid)

	rec = app.do(http.MethodGet, "/v1/stock-outs/"+req.StockOutID.String, keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	so := decode[stock.StockOut](t, rec)
	assert.Equal(t, 3, so.Quantity)
	assert.Equal(t, fx.Office.ID, so.OfficeID.String)
	assert.Equal(t, req.ID, so.RequestID.String)

	rec = app.do(http.MethodDelete, "/v1/stock-outs/"+so.ID, keeperToken)
	checkCodeAndData(t, http.StatusBadRequest, marshalObj(t, httpErr{Error: "a stock-out issued for a request cannot be deleted"}), rec)

	rec = app.do(http.MethodGet, "/v1/current-stock/"+fx.Item.ID, keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 7, decode[stock.CurrentStock](t, rec).Balance)
}
