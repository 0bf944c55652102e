package testutil

import (
	"context"
	"net/mail"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
	"github.com/unistock/stockroom/storage/database"
)

// NopLogger discards every log entry.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// Event is an event recorded by Publisher.
type Event struct {
	Topic string
	Data  interface{}
}

// Publisher records the published events.
type Publisher struct {
	mu     sync.Mutex
	events []Event
}

var _ core.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(topic string, data interface{}) {
	p.mu.Lock()
	p.events = append(p.events, Event{Topic: topic, Data: data})
	p.mu.Unlock()
}

func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		topics = append(topics, evt.Topic)
	}
	return topics
}

// NewConfig returns the configuration used by tests, without reading the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:                   "Stockroom",
		Build:                     "test",
		Env:                       "TEST",
		Debug:                     true,
		TestMode:                  true,
		WorkDir:                   core.Getwd(),
		SecretKey:                 "test-secret-key",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			Host:                      "localhost",
			Address:                   ":8000",
			ReadTimeout:               5 * time.Second,
			WriteTimeout:              10 * time.Second,
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			DisableReqLogs:            true,
		},
		Database: core.DatabaseConfig{InMemory: true},
		Email: core.EmailConfig{
			DefaultFrom:     mail.Address{Name: "Stockroom", Address: "noreply@stockroom.test"},
			FrontendBaseURL: "http://localhost:3000",
		},
		Authz: core.AuthzConfig{Mode: "enforce"},
		Stock: core.StockConfig{NotifyRoles: []string{user.RoleAdmin, user.RoleStorekeeper}},
	}
}

// PrepareDB opens the postgres test database configured by the TEST_DATABASE_* variables and migrates it.
// Every table is emptied when the test ends. The test is skipped when TEST_DATABASE_HOST is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST is not set")
	}
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	t.Cleanup(func() {
		const truncate = `TRUNCATE "user", department, office, supplier, category, item, stock_in, stock_out,
			dead_stock, dead_stock_request, stock_in_request, ledger_block CASCADE`
		if _, err := db.Exec(truncate); err != nil {
			t.Errorf("truncating tables: %v", err)
		}
		_ = db.Close()
	})
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateDepartment(t *testing.T, repo org.Repository, name, code string) org.Department {
	t.Helper()
	now := time.Now().UTC()
	dept, err := repo.CreateDepartment(context.Background(), org.Department{Name: name, Code: code, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateDepartment() failed: %v", err)
	}
	return dept
}

func CreateOffice(t *testing.T, repo org.Repository, deptID, name string) org.Office {
	t.Helper()
	now := time.Now().UTC()
	office, err := repo.CreateOffice(context.Background(), org.Office{DepartmentID: deptID, Name: name, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateOffice() failed: %v", err)
	}
	return office
}

func CreateSupplier(t *testing.T, repo catalog.Repository, name string, isActive bool) catalog.Supplier {
	t.Helper()
	now := time.Now().UTC()
	sup, err := repo.CreateSupplier(context.Background(), catalog.Supplier{Name: name, IsActive: isActive, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateSupplier() failed: %v", err)
	}
	return sup
}

func CreateCategory(t *testing.T, repo catalog.Repository, name string) catalog.Category {
	t.Helper()
	now := time.Now().UTC()
	cat, err := repo.CreateCategory(context.Background(), catalog.Category{Name: name, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return cat
}

func CreateItem(t *testing.T, repo catalog.Repository, categoryID, name string, reorderLevel int) catalog.Item {
	t.Helper()
	now := time.Now().UTC()
	item, err := repo.CreateItem(context.Background(), catalog.Item{
		CategoryID:   categoryID,
		Name:         name,
		Unit:         catalog.DefaultUnit,
		ReorderLevel: reorderLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return item
}

// CreateStockIn records qty units of item at price, received at receivedAt.
func CreateStockIn(t *testing.T, repo stock.Repository, itemID, supplierID, deptID string, qty int, price string, receivedAt time.Time) stock.StockIn {
	t.Helper()
	now := time.Now().UTC()
	si, err := repo.CreateStockIn(context.Background(), stock.StockIn{
		ItemID:       itemID,
		SupplierID:   supplierID,
		DepartmentID: null.NewString(deptID, deptID != ""),
		Quantity:     qty,
		UnitPrice:    decimal.RequireFromString(price),
		ReceivedAt:   receivedAt.UTC(),
		CreatedBy:    "test",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateStockIn() failed: %v", err)
	}
	return si
}

// Fixtures is a minimal catalog to move stock of.
type Fixtures struct {
	Department org.Department
	Office     org.Office
	Supplier   catalog.Supplier
	Category   catalog.Category
	Item       catalog.Item
}

func CreateFixtures(t *testing.T, orgRepo org.Repository, catRepo catalog.Repository) Fixtures {
	t.Helper()
	var fx Fixtures
	fx.Department = CreateDepartment(t, orgRepo, "Computer Science", "CS")
	fx.Office = CreateOffice(t, orgRepo, fx.Department.ID, "Lab 1")
	fx.Supplier = CreateSupplier(t, catRepo, "Office Supplies Ltd", true)
	fx.Category = CreateCategory(t, catRepo, "Stationery")
	fx.Item = CreateItem(t, catRepo, fx.Category.ID, "A4 paper", 10)
	return fx
}
