package dig_container

import (
	"fmt"
	"io"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

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
	logsvc "github.com/unistock/stockroom/services/logger"
	"github.com/unistock/stockroom/storage/database"
	inmemdb "github.com/unistock/stockroom/storage/database/inmem"
	sqlxrepos "github.com/unistock/stockroom/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the set of repositories backing the services, plus the handle closing them.
type Storage struct {
	dig.Out

	Closer  io.Closer `name:"dbCloser"`
	Users   user.Repository
	Org     org.Repository
	Catalog catalog.Repository
	Stock   stock.Repository
	Ledger  ledger.Repository
	Report  report.Repository
}

type DBCloserParam struct {
	dig.In
	Closer io.Closer `name:"dbCloser"`
}

type closerFunc func() error

func (fn closerFunc) Close() error { return fn() }

func newZap(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZap(conf)
}

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newDBLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.InMemory {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on shutdown")
		db := inmemdb.Open()
		return Storage{
			Closer:  closerFunc(func() error { return nil }),
			Users:   inmemdb.NewUserRepository(db),
			Org:     inmemdb.NewOrgRepository(db),
			Catalog: inmemdb.NewCatalogRepository(db),
			Stock:   inmemdb.NewStockRepository(db),
			Ledger:  inmemdb.NewLedgerRepository(db),
			Report:  inmemdb.NewReportRepository(db),
		}
	}

	setUp := func() (core.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		Closer:  db,
		Users:   sqlxrepos.NewUserRepository(db),
		Org:     sqlxrepos.NewOrgRepository(db),
		Catalog: sqlxrepos.NewCatalogRepository(db),
		Stock:   sqlxrepos.NewStockRepository(db),
		Ledger:  sqlxrepos.NewLedgerRepository(db),
		Report:  sqlxrepos.NewReportRepository(db),
	}
}

func newAuthorizer(conf *core.Config) (*authz.Authorizer, error) {
	mode, err := authz.ParseMode(conf.Authz.Mode)
	if err != nil {
		return nil, err
	}
	return authz.NewAuthorizer(mode)
}

func newPublisher(hub *events.Hub) core.EventPublisher {
	return hub
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

type StockParams struct {
	dig.In

	Repo      stock.Repository
	Catalog   catalog.Service
	Org       org.Service
	Ledger    ledger.Service
	Users     user.ServiceInterface
	Mail      core.EmailService
	Publisher core.EventPublisher
	Logger    core.Logger
	Conf      *core.Config
}

func newStockService(p StockParams) stock.Service {
	return stock.NewService(stock.Deps{
		Repo:      p.Repo,
		Catalog:   p.Catalog,
		Org:       p.Org,
		Ledger:    p.Ledger,
		Users:     p.Users,
		Mail:      p.Mail,
		Publisher: p.Publisher,
		Logger:    p.Logger,
		Conf:      p.Conf,
	})
}

func newReportService(repo report.Repository, stockSvc stock.Service) report.Service {
	return report.NewService(repo, stockSvc)
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Authorizer *authz.Authorizer
	Hub        *events.Hub
	Registry   *prometheus.Registry

	UserSvc    user.ServiceInterface
	OrgSvc     org.Service
	CatalogSvc catalog.Service
	StockSvc   stock.Service
	LedgerSvc  ledger.Service
	ReportSvc  report.Service
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Authorizer: p.Authorizer,
		Hub:        p.Hub,
		Metrics:    p.Registry,
		UserSvc:    p.UserSvc,
		OrgSvc:     p.OrgSvc,
		CatalogSvc: p.CatalogSvc,
		StockSvc:   p.StockSvc,
		LedgerSvc:  p.LedgerSvc,
		ReportSvc:  p.ReportSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(emailsvc.New))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newAuthorizer))
	must(c.Provide(events.NewHub))
	must(c.Provide(newPublisher))
	must(c.Provide(newRegistry))
	must(c.Provide(user.NewService))
	must(c.Provide(org.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(ledger.NewService))
	must(c.Provide(newStockService))
	must(c.Provide(newReportService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
