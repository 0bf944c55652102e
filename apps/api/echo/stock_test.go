package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/stock"
	testutil "github.com/unistock/stockroom/tests"
)

func Test_stockApi_flow(t *testing.T) {
	app := setup(t)
	admin, keeper, staff, _ := app.users(t)
	keeperToken := getToken(t, app.conf, keeper)
	staffToken := getToken(t, app.conf, staff)
	fx := testutil.CreateFixtures(t, app.orgRepo, app.catRepo)

	newStockIn := stock.NewStockIn{
		ItemID:       fx.Item.ID,
		SupplierID:   fx.Supplier.ID,
		DepartmentID: fx.Department.ID,
		Quantity:     10,
		UnitPrice:    decimal.RequireFromString("2.50"),
		InvoiceNo:    "INV-001",
	}

	app.run(t, []httpTest{
		{
			name: "staff cannot receive stock", method: http.MethodPost, path: "/v1/stock-ins", token: staffToken,
			body: marshalObj(t, newStockIn), wantCode: http.StatusForbidden,
		},
		{
			name: "zero quantity", method: http.MethodPost, path: "/v1/stock-ins", token: keeperToken,
			body: []byte(`{"item_id": "` + fx.Item.ID + `", "supplier_id": "` + fx.Supplier.ID + `", "quantity": 0}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"quantity": "quantity must be greater than 0"}`),
		},
		{
			name: "negative price", method: http.MethodPost, path: "/v1/stock-ins", token: keeperToken,
			body: []byte(`{"item_id": "` + fx.Item.ID + `", "supplier_id": "` + fx.Supplier.ID + `", "quantity": 1, "unit_price": "-1"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"unit_price": "unit price cannot be negative"}`),
		},
		{
			name: "sub-cent price", method: http.MethodPost, path: "/v1/stock-ins", token: keeperToken,
			body: []byte(`{"item_id": "` + fx.Item.ID + `", "supplier_id": "` + fx.Supplier.ID + `", "quantity": 1, "unit_price": "1.005"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"unit_price": "unit price cannot have more than 2 decimal places"}`),
		},
		{name: "unknown stock-in", path: "/v1/stock-ins/00000000-0000-0000-0000-000000000000", token: keeperToken, wantCode: http.StatusNotFound},
	})

	// receive
	rec := app.do(http.MethodPost, "/v1/stock-ins", keeperToken, marshalObj(t, newStockIn))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	si := decode[stock.StockIn](t, rec)
	assert.Equal(t, "A4 paper", si.ItemName)
	assert.Equal(t, "Computer Science", si.DepartmentName)
	assert.True(t, decimal.RequireFromString("25").Equal(si.TotalPrice))
	assert.False(t, si.IsVerified)

	// admins and storekeepers are notified
	var notified []string
	for _, msg := range app.mailSvc.SentMessages() {
		notified = append(notified, msg.To[0].Address)
	}
	assert.ElementsMatch(t, []string{admin.Email, keeper.Email}, notified)

	// issue
	out := stock.NewStockOut{ItemID: fx.Item.ID, OfficeID: fx.Office.ID, Quantity: 11, IssuedTo: "Dr. Who"}
	rec = app.do(http.MethodPost, "/v1/stock-outs", keeperToken, marshalObj(t, out))
	checkCodeAndData(t, http.StatusBadRequest, []byte(`{"quantity": "insufficient stock: 10 available, 11 requested"}`), rec)

	out.Quantity = 4
	rec = app.do(http.MethodPost, "/v1/stock-outs", keeperToken, marshalObj(t, out))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	so := decode[stock.StockOut](t, rec)
	assert.Equal(t, "Lab 1", so.OfficeName)
	assert.Equal(t, fx.Department.ID, so.DepartmentID.String, "the office's department is recorded")

	rec = app.do(http.MethodGet, "/v1/current-stock/"+fx.Item.ID, staffToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cs := decode[stock.CurrentStock](t, rec)
	assert.Equal(t, 10, cs.TotalIn)
	assert.Equal(t, 4, cs.TotalOut)
	assert.Equal(t, 6, cs.Balance)
	assert.True(t, cs.LowStock)

	// the stock-in cannot drop below what was issued
	rec = app.do(http.MethodPut, "/v1/stock-ins/"+si.ID, keeperToken, []byte(`{"quantity": 3}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPut, "/v1/stock-ins/"+si.ID, keeperToken, []byte(`{"quantity": 12, "remarks": "recount"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	si = decode[stock.StockIn](t, rec)
	assert.Equal(t, 12, si.Quantity)
	assert.Equal(t, "INV-001", si.InvoiceNo)
	assert.True(t, decimal.RequireFromString("30").Equal(si.TotalPrice))

	// verify
	rec = app.do(http.MethodPost, "/v1/stock-ins/"+si.ID+"/verify", staffToken)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/v1/stock-ins/"+si.ID+"/verify", keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	si = decode[stock.StockIn](t, rec)
	assert.True(t, si.IsVerified)
	assert.Equal(t, keeper.Username, si.VerifiedBy.String)

	app.run(t, []httpTest{
		{
			name: "verified stock-in is locked", method: http.MethodPut, path: "/v1/stock-ins/" + si.ID, token: keeperToken,
			body: []byte(`{"quantity": 20}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "a verified stock-in cannot be changed"}),
		},
		{
			name: "verified stock-in cannot be deleted", method: http.MethodDelete, path: "/v1/stock-ins/" + si.ID, token: keeperToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "a verified stock-in cannot be changed"}),
		},
		{
			name: "verify twice", method: http.MethodPost, path: "/v1/stock-ins/" + si.ID + "/verify", token: keeperToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "stock-in is already verified"}),
		},
	})

	// ledger
	rec = app.do(http.MethodGet, "/v1/stock-ins/"+si.ID+"/ledger", staffToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	blocks := decode[[]ledger.Block](t, rec)
	require.Len(t, blocks, 3)
	assert.Equal(t, stock.EventStockInCreated, blocks[0].EventType)
	assert.Equal(t, stock.EventStockInUpdated, blocks[1].EventType)
	assert.Equal(t, stock.EventStockInVerified, blocks[2].EventType)

	rec = app.do(http.MethodGet, "/v1/stock-ins/"+si.ID+"/ledger/verify", staffToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decode[ledger.Report](t, rec)
	assert.True(t, rep.Valid)
	assert.Equal(t, 3, rep.Length)
	assert.Equal(t, blocks[2].Hash, rep.LastHash)

	rec = app.do(http.MethodGet, "/v1/ledger/"+url.PathEscape(stock.StockInChainKey(si.ID)), keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]ledger.Block](t, rec), 3)

	rec = app.do(http.MethodGet, "/v1/ledger?prefix="+stock.ChainKindStockIn, keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reports := decode[[]ledger.Report](t, rec)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Valid)

	// every chain key is addressable, whatever its name
	_, err := app.ledgerSvc.Append(context.Background(), "verify", "note.created", map[string]string{"note": "x"}, "admin")
	require.NoError(t, err)
	rec = app.do(http.MethodGet, "/v1/ledger/verify", keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, decode[[]ledger.Block](t, rec), 1)
	rec = app.do(http.MethodGet, "/v1/ledger/verify/verify", keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[ledger.Report](t, rec).Valid)

	// stock-outs can be cancelled
	rec = app.do(http.MethodDelete, "/v1/stock-outs/"+so.ID, keeperToken)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = app.do(http.MethodGet, "/v1/current-stock/"+fx.Item.ID, keeperToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12, decode[stock.CurrentStock](t, rec).Balance)
}

func Test_stockApi_updateDepartment(t *testing.T) {
	app := setup(t)
	_, keeper, _, _ := app.users(t)
	keeperToken := getToken(t, app.conf, keeper)
	fx := testutil.CreateFixtures(t, app.orgRepo, app.catRepo)

	rec := app.do(http.MethodPost, "/v1/stock-ins", keeperToken, marshalObj(t, stock.NewStockIn{
		ItemID: fx.Item.ID, SupplierID: fx.Supplier.ID, Quantity: 5, UnitPrice: decimal.RequireFromString("1.50"),
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	si := decode[stock.StockIn](t, rec)
	require.False(t, si.DepartmentID.Valid)

	update := func(t *testing.T, body string) stock.StockIn {
		rec := app.do(http.MethodPut, "/v1/stock-ins/"+si.ID, keeperToken, []byte(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[stock.StockIn](t, rec)
	}

	t.Run("without department", func(t *testing.T) {
		si := update(t, `{"remarks": "recount"}`)
		assert.Equal(t, "recount", si.Remarks)
		assert.False(t, si.DepartmentID.Valid)
	})
	t.Run("assign department", func(t *testing.T) {
		si := update(t, `{"department_id": "`+fx.Department.ID+`"}`)
		assert.Equal(t, fx.Department.ID, si.DepartmentID.String)
		assert.Equal(t, fx.Department.Name, si.DepartmentName)
		assert.Equal(t, "recount", si.Remarks)
	})
	t.Run("clear department", func(t *testing.T) {
		si := update(t, `{"department_id": ""}`)
		assert.False(t, si.DepartmentID.Valid)
		assert.Empty(t, si.DepartmentName)
	})

	app.run(t, []httpTest{
		{
			name: "invalid department", method: http.MethodPut, path: "/v1/stock-ins/" + si.ID, token: keeperToken,
			body: []byte(`{"department_id": "nope"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "sub-cent price", method: http.MethodPut, path: "/v1/stock-ins/" + si.ID, token: keeperToken,
			body: []byte(`{"unit_price": "0.999"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"unit_price": "unit price cannot have more than 2 decimal places"}`),
		},
	})
}

func Test_stockApi_queries(t *testing.T) {
	app := setup(t)
	_, keeper, _, _ := app.users(t)
	keeperToken := getToken(t, app.conf, keeper)
	fx := testutil.CreateFixtures(t, app.orgRepo, app.catRepo)
	toner := testutil.CreateItem(t, app.catRepo, fx.Category.ID, "Toner", 1)

	day := func(d int) time.Time { return time.Date(2024, time.March, d, 10, 0, 0, 0, time.UTC) }
	si1 := testutil.CreateStockIn(t, app.stockRepo, fx.Item.ID, fx.Supplier.ID, fx.Department.ID, 50, "1.00", day(1))
	si2 := testutil.CreateStockIn(t, app.stockRepo, toner.ID, fx.Supplier.ID, "", 3, "80.00", day(5))
	si3 := testutil.CreateStockIn(t, app.stockRepo, fx.Item.ID, fx.Supplier.ID, "", 20, "1.10", day(9))

	query := func(t *testing.T, path string) core.Page[stock.StockIn] {
		rec := app.do(http.MethodGet, path, keeperToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[core.Page[stock.StockIn]](t, rec)
	}
	ids := func(page core.Page[stock.StockIn]) []string {
		res := make([]string, 0, len(page.Results))
		for _, si := range page.Results {
			res = append(res, si.ID)
		}
		return res
	}

	t.Run("ordering by received_at", func(t *testing.T) {
		assert.Equal(t, []string{si3.ID, si2.ID, si1.ID}, ids(query(t, "/v1/stock-ins?ordering=-received_at")))
	})
	t.Run("ordering", func(t *testing.T) {
		assert.Equal(t, []string{si2.ID, si3.ID, si1.ID}, ids(query(t, "/v1/stock-ins?ordering=-unit_price")))
	})
	t.Run("item", func(t *testing.T) {
		assert.Equal(t, []string{si2.ID}, ids(query(t, "/v1/stock-ins?item_id="+toner.ID)))
	})
	t.Run("department", func(t *testing.T) {
		assert.Equal(t, []string{si1.ID}, ids(query(t, "/v1/stock-ins?department_id="+fx.Department.ID)))
	})
	t.Run("date range", func(t *testing.T) {
		assert.Equal(t, []string{si2.ID, si1.ID}, ids(query(t, "/v1/stock-ins?from=2024-03-01&to=2024-03-05&ordering=-received_at")))
	})
	t.Run("search", func(t *testing.T) {
		assert.Equal(t, []string{si2.ID}, ids(query(t, "/v1/stock-ins?search=TONER")))
	})
	t.Run("pagination", func(t *testing.T) {
		page := query(t, "/v1/stock-ins?page=2&page_size=2&ordering=-received_at")
		assert.Equal(t, 3, page.Count)
		assert.Equal(t, []string{si1.ID}, ids(page))
	})

	app.run(t, []httpTest{
		{name: "bad date", path: "/v1/stock-ins?from=yesterday", token: keeperToken, wantCode: http.StatusBadRequest},
		{name: "bad kind", path: "/v1/stock-history?kind=lost", token: keeperToken, wantCode: http.StatusBadRequest},
	})

	t.Run("current stock", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/current-stock?ordering=item_name", keeperToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decode[core.Page[stock.CurrentStock]](t, rec)
		require.Equal(t, 2, page.Count)
		assert.Equal(t, fx.Item.ID, page.Results[0].ItemID)
		assert.Equal(t, 70, page.Results[0].Balance)
		assert.Equal(t, 3, page.Results[1].Balance)
	})

	t.Run("history", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/stock-history?kind=in&item_id="+fx.Item.ID+"&ordering=date", keeperToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decode[core.Page[stock.HistoryEntry]](t, rec)
		require.Equal(t, 2, page.Count)
		assert.Equal(t, si1.ID, page.Results[0].RefID)
		assert.Equal(t, si3.ID, page.Results[1].RefID)
	})
}
