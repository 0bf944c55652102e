// Package sqlxrepos implements the repositories on PostgreSQL with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

func pqError(err error) *pq.Error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr
	}
	return nil
}

// constraintErr maps a unique or foreign key violation on one of constraints to its domain error.
func constraintErr(err error, constraints map[string]error) error {
	if pqErr := pqError(err); pqErr != nil && (pqErr.Code == uniqueViolation || pqErr.Code == foreignKeyViolation) {
		if domainErr, ok := constraints[pqErr.Constraint]; ok {
			return domainErr
		}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	pqErr := pqError(err)
	return pqErr != nil && pqErr.Code == foreignKeyViolation
}

// trapNoRowsErr maps sql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// eqID matches col against id; ids that are not UUIDs match nothing.
func eqID(col, id string) sq.Sqlizer {
	if !isUUID(id) {
		return sq.Expr("FALSE")
	}
	return sq.Eq{col: id}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// search does a case-insensitive match of term on any of cols.
func search(term string, cols ...string) sq.Sqlizer {
	pattern := "%" + escapeLike(term) + "%"
	or := make(sq.Or, 0, len(cols))
	for _, col := range cols {
		or = append(or, sq.ILike{col: pattern})
	}
	return or
}

// orderBy maps ordering fields to their columns; unknown fields are ignored.
// tiebreak is appended to make pagination stable.
func orderBy(ordering []core.DBOrdering, columns map[string]string, tiebreak string) []string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	return append(clauses, tiebreak)
}

func selectRows(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query sq.Sqlizer) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, q, dest, stmt, args...)
}

func getRow(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query sq.Sqlizer) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, q, dest, stmt, args...)
}

func execQuery(ctx context.Context, e sqlx.ExecerContext, query sq.Sqlizer) (int64, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := e.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queryPage selects the requested page of q into dest and returns the count of all matching rows.
// q holds the FROM, JOIN and WHERE clauses only.
func queryPage(ctx context.Context, db sqlx.QueryerContext, dest interface{}, q sq.SelectBuilder, columns, ordering []string, page core.Pagination) (int, error) {
	var count int
	if err := getRow(ctx, db, &count, q.Column("COUNT(*)")); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}

	q = q.Columns(columns...).OrderBy(ordering...)
	if !page.IsZero() {
		q = q.Limit(page.Limit()).Offset(page.Offset())
	}
	if err := selectRows(ctx, db, dest, q); err != nil {
		return 0, errors.Wrap(err, "selecting rows")
	}
	return count, nil
}

// withTx runs fn in a transaction, committed if fn returns nil and rolled back otherwise.
func withTx(ctx context.Context, db core.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}
