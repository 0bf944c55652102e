package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/unistock/stockroom/apps/api/echo"
	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/report"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
	"github.com/unistock/stockroom/services/authz"
	emailsvc "github.com/unistock/stockroom/services/email"
	"github.com/unistock/stockroom/services/events"
	inmemdb "github.com/unistock/stockroom/storage/database/inmem"
	testutil "github.com/unistock/stockroom/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server    *echoapi.Server
	conf      *core.Config
	usrRepo   user.Repository
	orgRepo   org.Repository
	catRepo   catalog.Repository
	stockRepo stock.Repository
	ledgerSvc ledger.Service
	mailSvc   *emailsvc.ConsoleServiceMock
	hub       *events.Hub
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NopLogger{}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)

	// set up DB & repos
	db := inmemdb.Open()
	app := &testApp{
		conf:      conf,
		usrRepo:   inmemdb.NewUserRepository(db),
		orgRepo:   inmemdb.NewOrgRepository(db),
		catRepo:   inmemdb.NewCatalogRepository(db),
		stockRepo: inmemdb.NewStockRepository(db),
		mailSvc:   emailsvc.NewConsoleServiceMock(conf, logger),
		hub:       events.NewHub(logger),
	}
	t.Cleanup(app.hub.Close)

	// set up services
	usrSvc := user.NewServiceMock(app.usrRepo, app.mailSvc, conf, logger)
	orgSvc := org.NewService(app.orgRepo)
	catSvc := catalog.NewService(app.catRepo)
	app.ledgerSvc = ledger.NewService(inmemdb.NewLedgerRepository(db), app.hub)
	stockSvc := stock.NewService(stock.Deps{
		Repo:      app.stockRepo,
		Catalog:   catSvc,
		Org:       orgSvc,
		Ledger:    app.ledgerSvc,
		Users:     usrSvc,
		Mail:      app.mailSvc,
		Publisher: app.hub,
		Logger:    logger,
		Conf:      conf,
	})
	az, err := authz.NewAuthorizer(authz.ModeEnforce)
	require.NoError(t, err)

	// set up server
	app.server = echoapi.NewServer(echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Authorizer: az,
		Hub:        app.hub,
		UserSvc:    usrSvc,
		OrgSvc:     orgSvc,
		CatalogSvc: catSvc,
		StockSvc:   stockSvc,
		LedgerSvc:  app.ledgerSvc,
		ReportSvc:  report.NewService(inmemdb.NewReportRepository(db), stockSvc),
	})
	return app
}

// users creates one active user per role, plus an inactive staff.
func (app *testApp) users(t *testing.T) (admin, keeper, staff, inactive user.User) {
	t.Helper()
	admin = testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	keeper = testutil.CreateUser(t, app.usrRepo, "Store Keeper", "keeper", "keeper@test.cd", "", []string{user.RoleStorekeeper}, true)
	staff = testutil.CreateUser(t, app.usrRepo, "Staff", "staff1", "staff@test.cd", "", []string{user.RoleStaff}, true)
	inactive = testutil.CreateUser(t, app.usrRepo, "Gone", "gone01", "gone@test.cd", "", []string{user.RoleStaff}, false)
	return
}

// do serves the request and returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			wantCode := tt.wantCode
			if wantCode == 0 {
				wantCode = http.StatusOK
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			if tt.wantData == nil {
				assert.Equal(t, wantCode, rec.Code, rec.Body.String())
				return
			}
			checkCodeAndData(t, wantCode, tt.wantData, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

// decode unmarshals the response body into a new T.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, wantCode int, wantData []byte, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(wantData))
	}
}
