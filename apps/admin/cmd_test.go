package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
	inmemdb "github.com/unistock/stockroom/storage/database/inmem"
	testutil "github.com/unistock/stockroom/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// set up DB & repos
	db := inmemdb.Open()
	out := new(bytes.Buffer)
	return &commandLine{
		logger:    zap.NewNop(),
		validate:  validate,
		usrRepo:   inmemdb.NewUserRepository(db),
		orgSvc:    org.NewService(inmemdb.NewOrgRepository(db)),
		catSvc:    catalog.NewService(inmemdb.NewCatalogRepository(db)),
		ledgerSvc: ledger.NewService(inmemdb.NewLedgerRepository(db), nil),
		out:       out,
	}, out
}

// mockPasswords makes the password prompts return pwds in order.
func mockPasswords(t *testing.T, pwds ...string) {
	t.Helper()
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name      string
	args      []string // without program name
	passwords []string
	wantErr   error
	wantErrIn string
}

func (cli *commandLine) runTests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(t, tt.passwords...)
			err := cli.run(context.Background(), tt.args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrIn != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrIn)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	cli.runTests(t, []cliTest{
		{name: "no identity", args: []string{"adduser", "--name", "Jane"}, wantErr: errMissingIdentity},
		{name: "unknown role", args: []string{"adduser", "--username", "jane01", "--role", "janitor:"}, wantErrIn: `unknown role "janitor:"`},
		{name: "empty password", args: []string{"adduser", "--username", "jane01"}, wantErr: errEmptyPassword},
		{name: "mismatch", args: []string{"adduser", "--username", "jane01"}, passwords: []string{"s3cret", "secret"}, wantErr: errPasswordMismatch},
		{name: "unexpected arg", args: []string{"adduser", "jane01"}, wantErrIn: "unknown command"},
		{
			name: "create admin", args: []string{"adduser", "--name", "Jane Doe", "--username", "Jane01", "--email", "JANE@test.cd"},
			passwords: []string{"s3cret", "s3cret"},
		},
	})

	jane, err := cli.usrRepo.GetUserByUsername(ctx, "jane01")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", jane.Name)
	assert.Equal(t, "jane@test.cd", jane.Email)
	assert.Equal(t, user.AdminRoles, jane.Roles)
	assert.True(t, jane.IsActive)
	assert.NoError(t, jane.CheckPassword("s3cret"))

	t.Run("update existing by email", func(t *testing.T) {
		mockPasswords(t, "n3w", "n3w")
		require.NoError(t, cli.run(ctx, []string{"adduser", "--email", "jane@test.cd", "--role", user.RoleStorekeeper}))

		usr, err := cli.usrRepo.GetUserByEmail(ctx, "jane@test.cd")
		require.NoError(t, err)
		assert.Equal(t, jane.ID, usr.ID)
		assert.Equal(t, "Jane Doe", usr.Name, "name is kept")
		assert.Equal(t, []string{user.RoleStorekeeper}, usr.Roles)
		assert.NoError(t, usr.CheckPassword("n3w"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awe001", "awe@test.cd", "mdr", nil, true)

	cli.runTests(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErrIn: "accepts 1 arg(s)"},
		{name: "no password", args: []string{"resetpassword", "awe001"}, wantErr: errEmptyPassword},
		{name: "user not found", args: []string{"resetpassword", "lol"}, passwords: []string{"lol", "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", usr.Username}, passwords: []string{"lol", "lol"}},
	})

	refreshed, err := cli.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lol"))

	mockPasswords(t, "lmao", "lmao")
	require.NoError(t, cli.run(context.Background(), []string{"resetpassword", usr.Email}))
	refreshed, err = cli.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	cli.runTests(t, []cliTest{
		{name: "no database", args: []string{"migrate", "up"}, wantErr: errNoDatabase},
	})

	var gotCommand string
	var gotArgs []string
	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		if command == "lol" {
			return errors.Errorf("%q: no such command", command)
		}
		return nil
	}
	cli.db = sqlx.NewDb(new(sql.DB), "postgres")

	cli.runTests(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrIn: "requires at least 1 arg(s)"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrIn: `"lol": no such command`},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
	})
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"2"}, gotArgs)
}

const seedYAML = `
departments:
  - name: Computer Science
    code: cs
    offices:
      - name: Lab 1
        location: Block A
      - name: Lab 2
  - name: Mathematics
    code: MATH
suppliers:
  - name: Office Supplies Ltd
    email: sales@osl.cd
categories:
  - name: Stationery
    items:
      - name: A4 paper
        unit: ream
        reorder_level: 10
      - name: Pens
`

func Test_commandLine_seed(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	require.NoError(t, cli.run(ctx, []string{"seed", path}))
	assert.Contains(t, out.String(), "created 2 departments, 2 offices, 1 suppliers, 1 categories, 2 items (0 skipped)")

	depts, err := cli.orgSvc.QueryDepartments(ctx, org.DepartmentFilter{Search: "computer"}, nil, core.NewPagination(1, 10))
	require.NoError(t, err)
	require.Equal(t, 1, depts.Count)
	assert.Equal(t, "CS", depts.Results[0].Code)

	items, err := cli.catSvc.QueryItems(ctx, catalog.ItemFilter{Search: "paper"}, nil, core.NewPagination(1, 10))
	require.NoError(t, err)
	require.Equal(t, 1, items.Count)
	assert.Equal(t, "ream", items.Results[0].Unit)
	assert.Equal(t, 10, items.Results[0].ReorderLevel)
	assert.Equal(t, "Stationery", items.Results[0].CategoryName)

	t.Run("loading twice skips existing records", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run(ctx, []string{"seed", path}))
		assert.Contains(t, out.String(), "created 0 departments, 0 offices, 0 suppliers, 0 categories, 0 items (8 skipped)")
	})
	t.Run("unknown field", func(t *testing.T) {
		_, err := cli.seed(ctx, strings.NewReader("departments:\n  - name: Physics\n    building: B\n"))
		assert.ErrorContains(t, err, "decoding seed file")
	})
	t.Run("invalid record", func(t *testing.T) {
		_, err := cli.seed(ctx, strings.NewReader("departments:\n  - name: Physics\n"))
		var vErrs validator.ValidationErrors
		assert.True(t, errors.As(err, &vErrs), "got %v", err)
	})
	t.Run("missing file", func(t *testing.T) {
		err := cli.run(ctx, []string{"seed", filepath.Join(t.TempDir(), "nope.yaml")})
		assert.True(t, os.IsNotExist(errors.Cause(err)), "got %v", err)
	})
}

// brokenLedger reports every chain as broken.
type brokenLedger struct {
	ledger.Service
}

func (brokenLedger) VerifyAll(_ context.Context, prefix string) ([]ledger.Report, error) {
	return []ledger.Report{{
		ChainKey: prefix + "42",
		Length:   2,
		Issues:   []ledger.Issue{{Index: 1, Reason: "hash mismatch"}},
	}}, nil
}

func Test_commandLine_verifyLedger(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := cli.ledgerSvc.Append(ctx, ledger.ChainKey(stock.ChainKindStockIn, id), "created", map[string]string{"id": id}, "keeper")
		require.NoError(t, err)
	}

	require.NoError(t, cli.run(ctx, []string{"verify-ledger", "--prefix", "stock_in:"}))
	assert.Contains(t, out.String(), "stock_in:a")
	assert.Contains(t, out.String(), "2 chains verified, 0 broken")

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"verify-ledger", "--chain", "stock_in:b"}))
	assert.NotContains(t, out.String(), "stock_in:a")
	assert.Contains(t, out.String(), "1 chains verified, 0 broken")

	cli.ledgerSvc = brokenLedger{}
	out.Reset()
	err := cli.run(ctx, []string{"verify-ledger", "--prefix", "stock_in:"})
	assert.Equal(t, errBrokenChains, err)
	assert.Contains(t, out.String(), "stock_in:42")
	assert.Contains(t, out.String(), "1 chains verified, 1 broken")
}
