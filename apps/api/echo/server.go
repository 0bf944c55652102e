// Package echoapi serves the stockroom REST API with echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/report"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
	"github.com/unistock/stockroom/services/authz"
	"github.com/unistock/stockroom/services/events"
)

// Options holds the dependencies of the Server.
type Options struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Authorizer *authz.Authorizer
	Hub        *events.Hub
	// Metrics registers the HTTP metrics; a private registry is used when nil.
	Metrics prometheus.Registerer

	UserSvc    user.ServiceInterface
	OrgSvc     org.Service
	CatalogSvc catalog.Service
	StockSvc   stock.Service
	LedgerSvc  ledger.Service
	ReportSvc  report.Service
}

type Server struct {
	*http.Server
	opts     Options
	app      *echo.Echo
	shutdown chan os.Signal
	errors   chan error
}

func NewServer(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewRegistry()
	}
	conf := opts.Conf
	s := &Server{
		Server: &http.Server{
			Addr:         conf.Server.Address,
			ReadTimeout:  conf.Server.ReadTimeout,
			WriteTimeout: conf.Server.WriteTimeout,
		},
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.Handler = s.app
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(newHTTPMetrics(s.opts.Metrics).middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	can := newGuard(s.opts.Authorizer, s.opts.Logger)

	registerUserAPI(v1, jwt, conf, s.opts.UserSvc, s.opts.Validate)

	authed := v1.Group("", jwt)
	registerOrgAPI(authed, can, s.opts.OrgSvc, s.opts.Validate)
	registerCatalogAPI(authed, can, s.opts.CatalogSvc, s.opts.Validate)
	registerStockAPI(authed, can, s.opts.StockSvc, s.opts.UserSvc, s.opts.Validate)
	registerRequestAPI(authed, can, s.opts.StockSvc, s.opts.UserSvc, s.opts.Validate)
	registerReportAPI(authed, can, s.opts.ReportSvc)
	registerLedgerAPI(authed, can, s.opts.LedgerSvc)
	registerEventsAPI(v1, conf, can, s.opts.Hub)
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.StartServer(s.Server); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives OS interrupts and the shutdown requested by fatal handler errors.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the server gracefully, then disconnects the websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	defer signal.Stop(s.shutdown)
	err := s.Server.Shutdown(ctx)
	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
