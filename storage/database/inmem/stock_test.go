package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
	testutil "github.com/unistock/stockroom/tests"
)

func TestStockRepository_balance(t *testing.T) {
	db := Open()
	repo := NewStockRepository(db)
	ctx := context.Background()
	fx := testutil.CreateFixtures(t, NewOrgRepository(db), NewCatalogRepository(db))
	si := testutil.CreateStockIn(t, repo, fx.Item.ID, fx.Supplier.ID, "", 5, "1.00", time.Now())

	_, err := repo.CreateStockOut(ctx, stock.StockOut{ItemID: fx.Item.ID, Quantity: 6, IssuedAt: time.Now()})
	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Available)
	assert.Equal(t, 6, insufficient.Requested)

	so, err := repo.CreateStockOut(ctx, stock.StockOut{
		ItemID: fx.Item.ID, OfficeID: null.StringFrom(fx.Office.ID), DepartmentID: null.StringFrom(fx.Department.ID),
		Quantity: 3, IssuedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lab 1", so.OfficeName)
	assert.Equal(t, fx.Department.Name, so.DepartmentName)

	_, err = repo.CreateDeadStock(ctx, stock.DeadStock{ItemID: fx.Item.ID, Quantity: 1, Reason: "broken", DeclaredAt: time.Now()})
	require.NoError(t, err)

	cs, err := repo.GetCurrentStock(ctx, fx.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, cs.TotalIn)
	assert.Equal(t, 3, cs.TotalOut)
	assert.Equal(t, 1, cs.TotalDead)
	assert.Equal(t, 1, cs.Balance)
	assert.True(t, cs.LowStock)

	// the stock-in cannot be removed while its units are issued
	assert.ErrorAs(t, repo.DeleteStockIn(ctx, si.ID), &insufficient)

	require.NoError(t, repo.DeleteStockOut(ctx, so.ID))
	_, err = repo.GetStockOutByID(ctx, so.ID)
	assert.Equal(t, stock.ErrStockOutNotFound, err)

	_, err = repo.GetCurrentStock(ctx, "unknown")
	assert.Equal(t, stock.ErrItemStockNotFound, err)
}

func TestStockRepository_verify(t *testing.T) {
	db := Open()
	repo := NewStockRepository(db)
	ctx := context.Background()
	fx := testutil.CreateFixtures(t, NewOrgRepository(db), NewCatalogRepository(db))
	si := testutil.CreateStockIn(t, repo, fx.Item.ID, fx.Supplier.ID, fx.Department.ID, 5, "1.00", time.Now())
	at := time.Now().UTC()

	verified, err := repo.VerifyStockIn(ctx, si.ID, "keeper", at)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Equal(t, null.StringFrom("keeper"), verified.VerifiedBy)
	assert.Equal(t, fx.Department.Name, verified.DepartmentName)

	_, err = repo.VerifyStockIn(ctx, si.ID, "keeper", at)
	assert.Equal(t, stock.ErrStockInAlreadyVerified, err)

	verified.Quantity = 50
	_, err = repo.UpdateStockIn(ctx, verified)
	assert.Equal(t, stock.ErrStockInVerified, err)
	assert.Equal(t, stock.ErrStockInVerified, repo.DeleteStockIn(ctx, si.ID))

	_, err = repo.VerifyStockIn(ctx, "unknown", "keeper", at)
	assert.Equal(t, stock.ErrStockInNotFound, err)
}

func TestStockRepository_history(t *testing.T) {
	db := Open()
	repo := NewStockRepository(db)
	ctx := context.Background()
	fx := testutil.CreateFixtures(t, NewOrgRepository(db), NewCatalogRepository(db))
	day := time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

	si := testutil.CreateStockIn(t, repo, fx.Item.ID, fx.Supplier.ID, "", 10, "1.00", day)
	so, err := repo.CreateStockOut(ctx, stock.StockOut{ItemID: fx.Item.ID, Quantity: 2, IssuedTo: "Dean", IssuedAt: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	ds, err := repo.CreateDeadStock(ctx, stock.DeadStock{ItemID: fx.Item.ID, Quantity: 1, Reason: "torn", DeclaredAt: day.Add(48 * time.Hour)})
	require.NoError(t, err)

	newestFirst := []core.DBOrdering{{Field: "date"}}
	entries, count, err := repo.QueryHistory(ctx, stock.HistoryFilter{}, newestFirst, core.NewPagination(1, 10))
	require.NoError(t, err)
	require.Equal(t, 3, count)
	assert.Equal(t, []string{ds.ID, so.ID, si.ID}, []string{entries[0].RefID, entries[1].RefID, entries[2].RefID})
	assert.Equal(t, []string{stock.KindDead, stock.KindOut, stock.KindIn}, []string{entries[0].Kind, entries[1].Kind, entries[2].Kind})

	entries, count, err = repo.QueryHistory(ctx, stock.HistoryFilter{Kind: stock.KindOut}, newestFirst, core.NewPagination(1, 10))
	require.NoError(t, err)
	require.Equal(t, 1, count)
	assert.Equal(t, 2, entries[0].Quantity)

	entries, count, err = repo.QueryHistory(ctx, stock.HistoryFilter{From: day.Add(time.Hour), To: day.Add(30 * time.Hour)}, newestFirst, core.NewPagination(1, 10))
	require.NoError(t, err)
	require.Equal(t, 1, count)
	assert.Equal(t, so.ID, entries[0].RefID)
}
