package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
)

var (
	stockInColumns = []string{
		"si.id", "si.item_id", "i.name AS item_name", "si.supplier_id", "s.name AS supplier_name",
		"si.department_id", "COALESCE(d.name, '') AS department_name", "si.quantity", "si.unit_price", "si.invoice_no",
		"si.received_at", "si.remarks", "si.is_verified", "si.verified_by", "si.verified_at", "si.created_by",
		"si.created_at", "si.updated_at",
	}
	stockInOrdering = map[string]string{
		"received_at":   "si.received_at",
		"quantity":      "si.quantity",
		"unit_price":    "si.unit_price",
		"item_name":     "i.name",
		"supplier_name": "s.name",
		"created_at":    "si.created_at",
	}

	stockOutColumns = []string{
		"so.id", "so.item_id", "i.name AS item_name", "so.office_id", "COALESCE(o.name, '') AS office_name",
		"so.department_id", "COALESCE(d.name, '') AS department_name", "so.quantity", "so.issued_to", "so.issued_at",
		"so.remarks", "so.request_id", "so.created_by", "so.created_at",
	}
	stockOutOrdering = map[string]string{
		"issued_at":   "so.issued_at",
		"quantity":    "so.quantity",
		"item_name":   "i.name",
		"office_name": "o.name",
		"created_at":  "so.created_at",
	}

	currentStockColumns = []string{
		"item_id", "item_name", "category_id", "category_name", "unit", "reorder_level",
		"total_in", "total_out", "total_dead", "balance",
	}
	currentStockOrdering = map[string]string{
		"item_name":     "item_name",
		"category_name": "category_name",
		"balance":       "balance",
		"total_in":      "total_in",
		"total_out":     "total_out",
		"total_dead":    "total_dead",
	}

	historyColumns  = []string{"kind", "ref_id", "item_id", "item_name", "department_id", "quantity", "moved_at AS date", "party"}
	historyOrdering = map[string]string{
		"date":      "moved_at",
		"quantity":  "quantity",
		"item_name": "item_name",
		"kind":      "kind",
	}

	stockConstraints = map[string]error{
		"stock_in_item_id_fkey":           stock.ErrUnknownItem,
		"stock_in_supplier_id_fkey":       stock.ErrUnknownSupplier,
		"stock_in_department_id_fkey":     stock.ErrUnknownDepartment,
		"stock_out_item_id_fkey":          stock.ErrUnknownItem,
		"stock_out_office_id_fkey":        stock.ErrUnknownOffice,
		"stock_out_department_id_fkey":    stock.ErrUnknownDepartment,
		"dead_stock_item_id_fkey":         stock.ErrUnknownItem,
		"dead_stock_request_item_id_fkey": stock.ErrUnknownItem,
		"stock_in_request_item_id_fkey":   stock.ErrUnknownItem,
		"stock_in_request_office_id_fkey": stock.ErrUnknownOffice,
	}
)

type stockRepository struct {
	db core.DB
}

var _ stock.Repository = (*stockRepository)(nil) // interface compliance check

func NewStockRepository(db core.DB) *stockRepository {
	return &stockRepository{db: db}
}

func timeRange(q sq.SelectBuilder, col string, from, to time.Time) sq.SelectBuilder {
	if !from.IsZero() {
		q = q.Where(sq.GtOrEq{col: from.UTC()})
	}
	if !to.IsZero() {
		q = q.Where(sq.LtOrEq{col: to.UTC()})
	}
	return q
}

// lockBalance locks the item against concurrent movements and returns its balance.
func lockBalance(ctx context.Context, tx *sqlx.Tx, itemID string) (int, error) {
	var id string
	q := psql.Select("id").From("item").Where(eqID("id", itemID)).Suffix("FOR UPDATE")
	if err := getRow(ctx, tx, &id, q); err != nil {
		return 0, trapNoRowsErr(err, stock.ErrUnknownItem, "locking item")
	}

	var balance int
	q = psql.Select("balance").From("current_stock").Where(sq.Eq{"item_id": id})
	if err := getRow(ctx, tx, &balance, q); err != nil {
		return 0, errors.Wrap(err, "reading item balance")
	}
	return balance, nil
}

// checkBalance fails with *stock.InsufficientStockError if quantity cannot be taken out of the item's balance.
func checkBalance(ctx context.Context, tx *sqlx.Tx, itemID string, quantity int) error {
	balance, err := lockBalance(ctx, tx, itemID)
	if err != nil {
		return err
	}
	if balance < quantity {
		return &stock.InsufficientStockError{ItemID: itemID, Available: balance, Requested: quantity}
	}
	return nil
}

// Stock-ins

func selectStockIns() sq.SelectBuilder {
	return psql.Select().
		From("stock_in si").
		Join("item i ON i.id = si.item_id").
		Join("supplier s ON s.id = si.supplier_id").
		LeftJoin("department d ON d.id = si.department_id")
}

func getStockIn(ctx context.Context, q querier, id string) (stock.StockIn, error) {
	var si stock.StockIn
	if err := getRow(ctx, q, &si, selectStockIns().Columns(stockInColumns...).Where(eqID("si.id", id))); err != nil {
		return stock.StockIn{}, trapNoRowsErr(err, stock.ErrStockInNotFound, "finding stock-in")
	}
	si.ComputeTotal()
	return si, nil
}

func (repo stockRepository) CreateStockIn(ctx context.Context, si stock.StockIn) (stock.StockIn, error) {
	si.ID = uuid.New().String()
	q := psql.Insert("stock_in").
		Columns(
			"id", "item_id", "supplier_id", "department_id", "quantity", "unit_price", "invoice_no", "received_at",
			"remarks", "is_verified", "verified_by", "verified_at", "created_by", "created_at", "updated_at").
		Values(
			si.ID, si.ItemID, si.SupplierID, si.DepartmentID, si.Quantity, si.UnitPrice, si.InvoiceNo, si.ReceivedAt,
			si.Remarks, si.IsVerified, si.VerifiedBy, si.VerifiedAt, si.CreatedBy, si.CreatedAt, si.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return stock.StockIn{}, errors.Wrap(constraintErr(err, stockConstraints), "inserting stock-in")
	}
	si.ComputeTotal()
	return si, nil
}

func (repo stockRepository) QueryStockIns(ctx context.Context, filter stock.StockInFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.StockIn, int, error) {
	q := selectStockIns()
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "i.name", "s.name", "si.invoice_no"))
	}
	if filter.ItemID != "" {
		q = q.Where(eqID("si.item_id", filter.ItemID))
	}
	if filter.SupplierID != "" {
		q = q.Where(eqID("si.supplier_id", filter.SupplierID))
	}
	if filter.DepartmentID != "" {
		q = q.Where(eqID("si.department_id", filter.DepartmentID))
	}
	if filter.IsVerified != nil {
		q = q.Where(sq.Eq{"si.is_verified": *filter.IsVerified})
	}
	q = timeRange(q, "si.received_at", filter.From, filter.To)

	rows := make([]stock.StockIn, 0)
	count, err := queryPage(ctx, repo.db, &rows, q, stockInColumns, orderBy(ordering, stockInOrdering, "si.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying stock-ins")
	}
	for i := range rows {
		rows[i].ComputeTotal()
	}
	return rows, count, nil
}

func (repo stockRepository) GetStockInByID(ctx context.Context, id string) (stock.StockIn, error) {
	return getStockIn(ctx, repo.db, id)
}

type lockedStockIn struct {
	ItemID     string `db:"item_id"`
	Quantity   int    `db:"quantity"`
	IsVerified bool   `db:"is_verified"`
}

func lockStockIn(ctx context.Context, tx *sqlx.Tx, id string) (lockedStockIn, error) {
	var locked lockedStockIn
	q := psql.Select("item_id", "quantity", "is_verified").From("stock_in").Where(eqID("id", id)).Suffix("FOR UPDATE")
	if err := getRow(ctx, tx, &locked, q); err != nil {
		return lockedStockIn{}, trapNoRowsErr(err, stock.ErrStockInNotFound, "locking stock-in")
	}
	if locked.IsVerified {
		return lockedStockIn{}, stock.ErrStockInVerified
	}
	return locked, nil
}

func (repo stockRepository) UpdateStockIn(ctx context.Context, si stock.StockIn) (stock.StockIn, error) {
	var updated stock.StockIn
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		locked, err := lockStockIn(ctx, tx, si.ID)
		if err != nil {
			return err
		}
		if si.Quantity < locked.Quantity {
			if err = checkBalance(ctx, tx, locked.ItemID, locked.Quantity-si.Quantity); err != nil {
				return err
			}
		}

		q := psql.Update("stock_in").
			SetMap(map[string]interface{}{
				"supplier_id":   si.SupplierID,
				"department_id": si.DepartmentID,
				"quantity":      si.Quantity,
				"unit_price":    si.UnitPrice,
				"invoice_no":    si.InvoiceNo,
				"received_at":   si.ReceivedAt,
				"remarks":       si.Remarks,
				"updated_at":    si.UpdatedAt,
			}).
			Where(sq.Eq{"id": si.ID})
		if _, err = execQuery(ctx, tx, q); err != nil {
			return errors.Wrap(constraintErr(err, stockConstraints), "updating stock-in")
		}
		updated, err = getStockIn(ctx, tx, si.ID)
		return err
	})
	return updated, err
}

func (repo stockRepository) VerifyStockIn(ctx context.Context, id, by string, at time.Time) (stock.StockIn, error) {
	q := psql.Update("stock_in").
		Set("is_verified", true).
		Set("verified_by", by).
		Set("verified_at", at).
		Set("updated_at", at).
		Where(sq.And{eqID("id", id), sq.Eq{"is_verified": false}})
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return stock.StockIn{}, errors.Wrap(err, "verifying stock-in")
	}

	si, err := getStockIn(ctx, repo.db, id)
	if err != nil {
		return stock.StockIn{}, err
	}
	if n == 0 {
		return stock.StockIn{}, stock.ErrStockInAlreadyVerified
	}
	return si, nil
}

func (repo stockRepository) DeleteStockIn(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		locked, err := lockStockIn(ctx, tx, id)
		if err != nil {
			return err
		}
		if err = checkBalance(ctx, tx, locked.ItemID, locked.Quantity); err != nil {
			return err
		}
		if _, err = execQuery(ctx, tx, psql.Delete("stock_in").Where(sq.Eq{"id": id})); err != nil {
			return errors.Wrap(err, "deleting stock-in")
		}
		return nil
	})
}

// Stock-outs

func selectStockOuts() sq.SelectBuilder {
	return psql.Select().
		From("stock_out so").
		Join("item i ON i.id = so.item_id").
		LeftJoin("office o ON o.id = so.office_id").
		LeftJoin("department d ON d.id = so.department_id")
}

func insertStockOut(ctx context.Context, tx *sqlx.Tx, so stock.StockOut) (stock.StockOut, error) {
	if err := checkBalance(ctx, tx, so.ItemID, so.Quantity); err != nil {
		return stock.StockOut{}, err
	}

	so.ID = uuid.New().String()
	q := psql.Insert("stock_out").
		Columns(
			"id", "item_id", "office_id", "department_id", "quantity", "issued_to", "issued_at", "remarks",
			"request_id", "created_by", "created_at").
		Values(
			so.ID, so.ItemID, so.OfficeID, so.DepartmentID, so.Quantity, so.IssuedTo, so.IssuedAt, so.Remarks,
			so.RequestID, so.CreatedBy, so.CreatedAt)
	if _, err := execQuery(ctx, tx, q); err != nil {
		return stock.StockOut{}, errors.Wrap(constraintErr(err, stockConstraints), "inserting stock-out")
	}
	return so, nil
}

func (repo stockRepository) CreateStockOut(ctx context.Context, so stock.StockOut) (stock.StockOut, error) {
	var created stock.StockOut
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		created, err = insertStockOut(ctx, tx, so)
		return err
	})
	return created, err
}

func (repo stockRepository) QueryStockOuts(ctx context.Context, filter stock.StockOutFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.StockOut, int, error) {
	q := selectStockOuts()
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "i.name", "o.name", "so.issued_to"))
	}
	if filter.ItemID != "" {
		q = q.Where(eqID("so.item_id", filter.ItemID))
	}
	if filter.OfficeID != "" {
		q = q.Where(eqID("so.office_id", filter.OfficeID))
	}
	if filter.DepartmentID != "" {
		q = q.Where(eqID("so.department_id", filter.DepartmentID))
	}
	q = timeRange(q, "so.issued_at", filter.From, filter.To)

	rows := make([]stock.StockOut, 0)
	count, err := queryPage(ctx, repo.db, &rows, q, stockOutColumns, orderBy(ordering, stockOutOrdering, "so.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying stock-outs")
	}
	return rows, count, nil
}

func getStockOut(ctx context.Context, q querier, id string) (stock.StockOut, error) {
	var so stock.StockOut
	if err := getRow(ctx, q, &so, selectStockOuts().Columns(stockOutColumns...).Where(eqID("so.id", id))); err != nil {
		return stock.StockOut{}, trapNoRowsErr(err, stock.ErrStockOutNotFound, "finding stock-out")
	}
	return so, nil
}

func (repo stockRepository) GetStockOutByID(ctx context.Context, id string) (stock.StockOut, error) {
	return getStockOut(ctx, repo.db, id)
}

func (repo stockRepository) DeleteStockOut(ctx context.Context, id string) error {
	n, err := execQuery(ctx, repo.db, psql.Delete("stock_out").Where(eqID("id", id)))
	if err != nil {
		return errors.Wrap(err, "deleting stock-out")
	}
	if n == 0 {
		return stock.ErrStockOutNotFound
	}
	return nil
}

// Current stock

func (repo stockRepository) QueryCurrentStock(ctx context.Context, filter stock.CurrentStockFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.CurrentStock, int, error) {
	q := psql.Select().From("current_stock")
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "item_name", "category_name"))
	}
	if filter.CategoryID != "" {
		q = q.Where(eqID("category_id", filter.CategoryID))
	}
	if filter.LowStock != nil {
		if *filter.LowStock {
			q = q.Where("balance <= reorder_level")
		} else {
			q = q.Where("balance > reorder_level")
		}
	}

	rows := make([]stock.CurrentStock, 0)
	count, err := queryPage(ctx, repo.db, &rows, q, currentStockColumns, orderBy(ordering, currentStockOrdering, "item_id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying current stock")
	}
	for i := range rows {
		rows[i].ComputeBalance()
	}
	return rows, count, nil
}

func (repo stockRepository) GetCurrentStock(ctx context.Context, itemID string) (stock.CurrentStock, error) {
	var cs stock.CurrentStock
	q := psql.Select(currentStockColumns...).From("current_stock").Where(eqID("item_id", itemID))
	if err := getRow(ctx, repo.db, &cs, q); err != nil {
		return stock.CurrentStock{}, trapNoRowsErr(err, stock.ErrItemStockNotFound, "finding item stock")
	}
	cs.ComputeBalance()
	return cs, nil
}

// History

func (repo stockRepository) QueryHistory(ctx context.Context, filter stock.HistoryFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.HistoryEntry, int, error) {
	q := psql.Select().From("stock_history")
	if filter.ItemID != "" {
		q = q.Where(eqID("item_id", filter.ItemID))
	}
	if filter.DepartmentID != "" {
		q = q.Where(eqID("department_id", filter.DepartmentID))
	}
	if filter.Kind != "" {
		q = q.Where(sq.Eq{"kind": filter.Kind})
	}
	q = timeRange(q, "moved_at", filter.From, filter.To)

	entries := make([]stock.HistoryEntry, 0)
	count, err := queryPage(ctx, repo.db, &entries, q, historyColumns, orderBy(ordering, historyOrdering, "ref_id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying stock history")
	}
	return entries, count, nil
}
