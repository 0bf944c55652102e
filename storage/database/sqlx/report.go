package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/report"
	"github.com/unistock/stockroom/core/stock"
)

type reportRepository struct {
	db core.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db core.DB) *reportRepository {
	return &reportRepository{db: db}
}

// movements selects the quantity (and value, for stock-ins) of the movements of table in the filtered period,
// grouped by department.
func movements(table, dateCol, valueExpr string, filter report.SummaryFilter) sq.SelectBuilder {
	q := sq.Select(
		"department_id",
		"COALESCE(SUM(quantity), 0) AS quantity",
		"COALESCE(SUM("+valueExpr+"), 0) AS value").
		From(table).
		GroupBy("department_id")
	if filter.DepartmentID != "" {
		q = q.Where(eqID("department_id", filter.DepartmentID))
	}
	return timeRange(q, dateCol, filter.From, filter.To)
}

type totalsRow struct {
	Quantity int             `db:"quantity"`
	Value    decimal.Decimal `db:"value"`
}

func (repo reportRepository) totals(ctx context.Context, sub sq.SelectBuilder) (totalsRow, error) {
	var row totalsRow
	q := psql.Select("COALESCE(SUM(m.quantity), 0) AS quantity", "COALESCE(SUM(m.value), 0) AS value").
		FromSelect(sub, "m")
	err := getRow(ctx, repo.db, &row, q)
	return row, err
}

func (repo reportRepository) count(ctx context.Context, q sq.SelectBuilder) (int, error) {
	var n int
	err := getRow(ctx, repo.db, &n, q.Column("COUNT(*)"))
	return n, err
}

func (repo reportRepository) Summary(ctx context.Context, filter report.SummaryFilter) (report.Summary, error) {
	var (
		summary report.Summary
		err     error
	)

	stockIns := movements("stock_in", "received_at", "quantity * unit_price", filter)
	stockOuts := movements("stock_out", "issued_at", "0", filter)

	in, err := repo.totals(ctx, stockIns)
	if err != nil {
		return report.Summary{}, errors.Wrap(err, "summing stock-ins")
	}
	summary.TotalIn = in.Quantity
	summary.StockInValue = in.Value

	out, err := repo.totals(ctx, stockOuts)
	if err != nil {
		return report.Summary{}, errors.Wrap(err, "summing stock-outs")
	}
	summary.TotalOut = out.Quantity

	// dead stock is not attributed to departments
	deadQ := timeRange(psql.Select("COALESCE(SUM(quantity), 0)").From("dead_stock"), "declared_at", filter.From, filter.To)
	if err = getRow(ctx, repo.db, &summary.TotalDead, deadQ); err != nil {
		return report.Summary{}, errors.Wrap(err, "summing dead stock")
	}

	if summary.TotalItems, err = repo.count(ctx, psql.Select().From("item")); err != nil {
		return report.Summary{}, errors.Wrap(err, "counting items")
	}
	lowQ := psql.Select().From("current_stock").Where("balance <= reorder_level")
	if summary.LowStockCount, err = repo.count(ctx, lowQ); err != nil {
		return report.Summary{}, errors.Wrap(err, "counting low stock items")
	}
	for _, table := range []string{"dead_stock_request", "stock_in_request"} {
		n, err := repo.count(ctx, psql.Select().From(table).Where(sq.Eq{"status": stock.StatusPending}))
		if err != nil {
			return report.Summary{}, errors.Wrap(err, "counting pending requests")
		}
		summary.PendingRequests += n
	}

	inSQL, inArgs, err := stockIns.ToSql()
	if err != nil {
		return report.Summary{}, errors.Wrap(err, "building query")
	}
	outSQL, outArgs, err := stockOuts.ToSql()
	if err != nil {
		return report.Summary{}, errors.Wrap(err, "building query")
	}
	deptQ := psql.Select(
		"d.id AS department_id",
		"d.name AS department_name",
		"COALESCE(si.quantity, 0) AS total_in",
		"COALESCE(so.quantity, 0) AS total_out",
		"COALESCE(si.value, 0) AS value").
		From("department d").
		LeftJoin("("+inSQL+") si ON si.department_id = d.id", inArgs...).
		LeftJoin("("+outSQL+") so ON so.department_id = d.id", outArgs...).
		OrderBy("d.name ASC")
	if filter.DepartmentID != "" {
		deptQ = deptQ.Where(eqID("d.id", filter.DepartmentID))
	}

	summary.ByDepartment = make([]report.DepartmentSummary, 0)
	if err = selectRows(ctx, repo.db, &summary.ByDepartment, deptQ); err != nil {
		return report.Summary{}, errors.Wrap(err, "summing by department")
	}
	return summary, nil
}
