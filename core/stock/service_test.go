package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
	emailsvc "github.com/unistock/stockroom/services/email"
	inmemdb "github.com/unistock/stockroom/storage/database/inmem"
	testutil "github.com/unistock/stockroom/tests"
)

// errorLogger records the messages logged at error level.
type errorLogger struct {
	testutil.NopLogger
	mu     sync.Mutex
	errors []string
}

func (l *errorLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// failingLedger cannot append blocks.
type failingLedger struct {
	ledger.Service
}

func (failingLedger) Append(context.Context, string, string, interface{}, string) (ledger.Block, error) {
	return ledger.Block{}, errors.New("ledger unavailable")
}

type fixture struct {
	svc       stock.Service
	ledger    ledger.Service
	mail      *emailsvc.ConsoleServiceMock
	publisher *testutil.Publisher
	logger    *errorLogger
	validate  *validator.Validate
	catRepo   catalog.Repository
	fx        testutil.Fixtures
	admin     user.User
	keeper    user.User
}

func setup(t *testing.T, ledgerSvc func(db *inmemdb.DB) ledger.Service) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	core.ParseEmailTemplates(nil)
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	orgRepo := inmemdb.NewOrgRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)

	f := &fixture{
		mail:      emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{}),
		publisher: new(testutil.Publisher),
		logger:    new(errorLogger),
		validate:  validate,
		catRepo:   catRepo,
		fx:        testutil.CreateFixtures(t, orgRepo, catRepo),
		keeper:    testutil.CreateUser(t, usrRepo, "Store Keeper", "keeper", "keeper@test.cd", "", []string{user.RoleStorekeeper}, true),
	}
	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, usrRepo, "Staff", "staff1", "staff@test.cd", "", []string{user.RoleStaff}, true)

	f.ledger = ledger.NewService(inmemdb.NewLedgerRepository(db), nil)
	if ledgerSvc != nil {
		f.ledger = ledgerSvc(db)
	}
	f.svc = stock.NewService(stock.Deps{
		Repo:      inmemdb.NewStockRepository(db),
		Catalog:   catalog.NewService(catRepo),
		Org:       org.NewService(orgRepo),
		Ledger:    f.ledger,
		Users:     user.NewService(usrRepo, f.mail, conf, testutil.NopLogger{}),
		Mail:      f.mail,
		Publisher: f.publisher,
		Logger:    f.logger,
		Conf:      conf,
	})
	return f
}

func (f *fixture) newStockIn(qty int) stock.NewStockIn {
	return stock.NewStockIn{
		ItemID:     f.fx.Item.ID,
		SupplierID: f.fx.Supplier.ID,
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString("2.50"),
		ReceivedAt: time.Now().UTC(),
	}
}

// errField returns the field of the first error of a *core.ValidationError.
func errField(err error) string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		return vErr.Fields[0].Field
	}
	return ""
}

func TestService_CreateStockIn(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	si, err := f.svc.CreateStockIn(ctx, f.keeper, f.newStockIn(4))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(si.TotalPrice))
	assert.Equal(t, "keeper", si.CreatedBy)
	assert.Equal(t, f.fx.Supplier.Name, si.SupplierName)

	blocks, err := f.svc.StockInChain(ctx, si.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, stock.EventStockInCreated, blocks[0].EventType)
	assert.Equal(t, ledger.GenesisHash, blocks[0].PreviousHash)

	// admins and storekeepers are notified, staff are not
	sent := f.mail.SentMessages()
	require.Len(t, sent, 2)
	var to []string
	for _, msg := range sent {
		to = append(to, msg.To[0].Address)
	}
	assert.ElementsMatch(t, []string{"admin@test.cd", "keeper@test.cd"}, to)
	assert.Contains(t, f.publisher.Topics(), stock.EventStockInCreated)

	t.Run("inactive supplier", func(t *testing.T) {
		ns := f.newStockIn(1)
		ns.SupplierID = testutil.CreateSupplier(t, f.catRepo, "Closed Ltd", false).ID
		_, err := f.svc.CreateStockIn(ctx, f.keeper, ns)
		assert.Equal(t, "supplier_id", errField(err))
	})
	t.Run("unknown item", func(t *testing.T) {
		ns := f.newStockIn(1)
		ns.ItemID = "00000000-0000-0000-0000-000000000000"
		_, err := f.svc.CreateStockIn(ctx, f.keeper, ns)
		assert.Equal(t, "item_id", errField(err))
	})
}

func TestService_CreateStockIn_ledgerFailure(t *testing.T) {
	f := setup(t, func(*inmemdb.DB) ledger.Service { return failingLedger{} })

	si, err := f.svc.CreateStockIn(context.Background(), f.keeper, f.newStockIn(2))
	require.NoError(t, err, "ledger failures do not fail the stock-in")
	assert.NotEmpty(t, si.ID)
	require.Len(t, f.logger.errors, 1)
	assert.Equal(t, "appending stock-in ledger event: ledger unavailable", f.logger.errors[0])
	assert.Len(t, f.mail.SentMessages(), 2)
}

func TestService_UpdateAndVerifyStockIn(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	si, err := f.svc.CreateStockIn(ctx, f.keeper, f.newStockIn(10))
	require.NoError(t, err)
	_, err = f.svc.CreateStockOut(ctx, f.keeper, stock.NewStockOut{ItemID: f.fx.Item.ID, OfficeID: f.fx.Office.ID, Quantity: 6, IssuedAt: time.Now()})
	require.NoError(t, err)

	update := func(qty int) (stock.StockIn, error) {
		us := stock.UpdateStockIn{Quantity: qty}
		require.NoError(t, us.Validate(si, f.validate))
		return f.svc.UpdateStockIn(ctx, f.keeper, si.ID, us)
	}

	_, err = update(5)
	assert.Equal(t, "quantity", errField(err), "issued stock cannot be taken back")

	si, err = update(8)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(si.TotalPrice))

	si, err = f.svc.VerifyStockIn(ctx, f.keeper, si.ID)
	require.NoError(t, err)
	assert.True(t, si.IsVerified)
	assert.Equal(t, "keeper", si.VerifiedBy.String)

	_, err = update(9)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, stock.ErrStockInVerified, vErr.Err)
	assert.Error(t, f.svc.DeleteStockIn(ctx, f.keeper, si.ID))

	rep, err := f.svc.VerifyStockInChain(ctx, si.ID)
	require.NoError(t, err)
	assert.True(t, rep.Valid)
	assert.Equal(t, 3, rep.Length)
}

func TestService_CreateStockOut_concurrent(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	_, err := f.svc.CreateStockIn(ctx, f.keeper, f.newStockIn(10))
	require.NoError(t, err)

	const workers = 25
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		issued, errs int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateStockOut(ctx, f.keeper, stock.NewStockOut{
				ItemID: f.fx.Item.ID, OfficeID: f.fx.Office.ID, Quantity: 1, IssuedAt: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs++
				assert.Equal(t, "quantity", errField(err), "got %v", err)
				return
			}
			issued++
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, issued)
	assert.Equal(t, workers-10, errs)
	cs, err := f.svc.GetCurrentStock(ctx, f.fx.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cs.Balance)
	assert.True(t, cs.LowStock)
}

func TestService_DeadStock(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	_, err := f.svc.CreateStockIn(ctx, f.keeper, f.newStockIn(3))
	require.NoError(t, err)

	_, err = f.svc.CreateDeadStock(ctx, f.admin, stock.NewDeadStock{ItemID: f.fx.Item.ID, Quantity: 4, Reason: "mould"})
	assert.Equal(t, "quantity", errField(err))

	ds, err := f.svc.CreateDeadStock(ctx, f.admin, stock.NewDeadStock{ItemID: f.fx.Item.ID, Quantity: 2, Reason: "mould"})
	require.NoError(t, err)
	assert.Equal(t, "admin", ds.DeclaredBy)
	assert.False(t, ds.RequestID.Valid)

	cs, err := f.svc.GetCurrentStock(ctx, f.fx.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cs.TotalDead)
	assert.Equal(t, 1, cs.Balance)
	assert.Contains(t, f.publisher.Topics(), stock.TopicDeadStockCreated)
}

func TestUpdateStockIn_Validate(t *testing.T) {
	f := setup(t, nil)
	orig := stock.StockIn{SupplierID: f.fx.Supplier.ID, Quantity: 4, UnitPrice: decimal.RequireFromString("1.25")}
	deptID := func(s string) *string { return &s }
	price := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name      string
		us        stock.UpdateStockIn
		wantField string
	}{
		{name: "no department kept"},
		{name: "department cleared", us: stock.UpdateStockIn{DepartmentID: deptID("  ")}},
		{name: "department set", us: stock.UpdateStockIn{DepartmentID: deptID(f.fx.Department.ID)}},
		{name: "invalid department", us: stock.UpdateStockIn{DepartmentID: deptID("nope")}, wantField: "department_id"},
		{name: "two decimals", us: stock.UpdateStockIn{UnitPrice: price("3.10")}},
		{name: "sub-cent price", us: stock.UpdateStockIn{UnitPrice: price("1.005")}, wantField: "unit_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.us.Validate(orig, f.validate)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErrs validator.ValidationErrors
			if errors.As(err, &vErrs) {
				assert.Equal(t, tt.wantField, vErrs[0].Field())
				return
			}
			assert.Equal(t, tt.wantField, errField(err))
		})
	}
}
