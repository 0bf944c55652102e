package main

import (
	"context"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword    = errors.New("password cannot be empty")
	errPasswordMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	db        *sqlx.DB // nil when the command does not need a database connection
	logger    *zap.Logger
	validate  *validator.Validate
	usrRepo   user.Repository
	orgSvc    org.Service
	catSvc    catalog.Service
	ledgerSvc ledger.Service
	out       io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Stockroom administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.AddCommand(
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.migrateCmd(),
		cli.seedCmd(),
		cli.verifyLedgerCmd(),
	)
	return root
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// promptPassword reads a password from the terminal without echoing it.
// The password is asked twice when confirm is true.
func (cli *commandLine) promptPassword(confirm bool) (string, error) {
	read := func(prompt string) (string, error) {
		cli.printf("%s", prompt)
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		cli.printf("\n")
		if err != nil {
			return "", err
		}
		return string(pwd), nil
	}

	pwd, err := read("Enter password: ")
	if err != nil {
		return "", err
	}
	if pwd == "" {
		return "", errEmptyPassword
	}
	if confirm {
		again, err := read("Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != pwd {
			return "", errPasswordMismatch
		}
	}
	return pwd, nil
}
