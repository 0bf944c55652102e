package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/stock"
	sqlxrepos "github.com/unistock/stockroom/storage/database/sqlx"
	testutil "github.com/unistock/stockroom/tests"
)

func TestLedgerRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	svc := ledger.NewService(sqlxrepos.NewLedgerRepository(db), nil)
	ctx := context.Background()
	const key, writers = "stock_in:sqlx", 10

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Append(ctx, key, "stock_in.updated", map[string]int{"quantity": i}, "keeper")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rep, err := svc.Verify(ctx, key)
	require.NoError(t, err)
	assert.True(t, rep.Valid, "%+v", rep.Issues)
	assert.Equal(t, writers, rep.Length)

	_, err = db.Exec(`UPDATE ledger_block SET payload = '{"quantity": 1000}' WHERE chain_key = $1 AND idx = 3`, key)
	require.NoError(t, err)
	rep, err = svc.Verify(ctx, key)
	require.NoError(t, err)
	assert.False(t, rep.Valid)
	require.NotEmpty(t, rep.Issues)
	assert.Equal(t, int64(3), rep.Issues[0].Index)

	keys, err := sqlxrepos.NewLedgerRepository(db).QueryChainKeys(ctx, "stock_in:")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestOrgRepository_constraints(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewOrgRepository(db)
	ctx := context.Background()
	cs := testutil.CreateDepartment(t, repo, "Computer Science", "CS")

	_, err := repo.CreateDepartment(ctx, org.Department{Name: "Chemistry", Code: "CS"})
	assert.Equal(t, org.ErrDepartmentCodeExists, errors.Cause(err))

	_, err = repo.CreateOffice(ctx, org.Office{DepartmentID: "00000000-0000-0000-0000-000000000000", Name: "Room 2"})
	assert.Equal(t, org.ErrUnknownDepartment, errors.Cause(err))

	testutil.CreateOffice(t, repo, cs.ID, "Lab 1")
	assert.Equal(t, org.ErrDepartmentInUse, errors.Cause(repo.DeleteDepartment(ctx, cs.ID)))
}

func TestStockRepository_balance(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewStockRepository(db)
	ctx := context.Background()
	fx := testutil.CreateFixtures(t, sqlxrepos.NewOrgRepository(db), sqlxrepos.NewCatalogRepository(db))
	si := testutil.CreateStockIn(t, repo, fx.Item.ID, fx.Supplier.ID, fx.Department.ID, 10, "2.50", time.Now())

	var wg sync.WaitGroup
	var mu sync.Mutex
	issued := 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateStockOut(ctx, stock.StockOut{ItemID: fx.Item.ID, Quantity: 1, IssuedAt: time.Now(), CreatedBy: "keeper"})
			if err == nil {
				mu.Lock()
				issued++
				mu.Unlock()
				return
			}
			var insufficient *stock.InsufficientStockError
			assert.ErrorAs(t, err, &insufficient)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, issued)

	cs, err := repo.GetCurrentStock(ctx, fx.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cs.Balance)

	_, err = repo.VerifyStockIn(ctx, si.ID, "keeper", time.Now())
	require.NoError(t, err)
	_, err = repo.VerifyStockIn(ctx, si.ID, "keeper", time.Now())
	assert.Equal(t, stock.ErrStockInAlreadyVerified, errors.Cause(err))
	assert.Equal(t, stock.ErrStockInVerified, errors.Cause(repo.DeleteStockIn(ctx, si.ID)))
}
