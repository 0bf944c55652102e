package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/user"
	logsvc "github.com/unistock/stockroom/services/logger"
	"github.com/unistock/stockroom/storage/database"
	sqlxrepos "github.com/unistock/stockroom/storage/database/sqlx"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		panic(err)
	}
	logger := zl.Named("admin")
	//goland:noinspection GoUnhandledErrorResult
	defer logger.Sync()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Error("creating database", zap.Error(err))
		return 1
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Error("opening database", zap.Error(err))
		return 1
	}
	//goland:noinspection GoUnhandledErrorResult
	defer db.Close()

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// start CLI
	cli := commandLine{
		db:        db,
		logger:    logger,
		validate:  validate,
		usrRepo:   sqlxrepos.NewUserRepository(db),
		orgSvc:    org.NewService(sqlxrepos.NewOrgRepository(db)),
		catSvc:    catalog.NewService(sqlxrepos.NewCatalogRepository(db)),
		ledgerSvc: ledger.NewService(sqlxrepos.NewLedgerRepository(db), nil),
		out:       os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		logger.Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}

func zapUser(usr user.User) []zap.Field {
	return []zap.Field{zap.String("id", usr.ID), zap.String("username", usr.Username), zap.String("email", usr.Email), zap.Strings("roles", usr.Roles)}
}
