package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
)

var (
	deadStockColumns = []string{
		"ds.id", "ds.item_id", "i.name AS item_name", "ds.quantity", "ds.reason", "ds.declared_by", "ds.declared_at",
		"ds.request_id", "ds.created_at",
	}
	deadStockOrdering = map[string]string{
		"declared_at": "ds.declared_at",
		"quantity":    "ds.quantity",
		"item_name":   "i.name",
		"created_at":  "ds.created_at",
	}

	deadStockRequestColumns = []string{
		"r.id", "r.item_id", "i.name AS item_name", "r.quantity", "r.reason", "r.status", "r.requested_by",
		"r.reviewed_by", "r.reviewed_at", "r.review_note", "r.created_at", "r.updated_at",
	}
	stockInRequestColumns = []string{
		"r.id", "r.item_id", "i.name AS item_name", "r.office_id", "o.name AS office_name", "r.quantity", "r.purpose",
		"r.status", "r.requested_by", "r.reviewed_by", "r.reviewed_at", "r.review_note", "r.stock_out_id",
		"r.created_at", "r.updated_at",
	}
	requestOrdering = map[string]string{
		"created_at":  "r.created_at",
		"quantity":    "r.quantity",
		"item_name":   "i.name",
		"office_name": "o.name",
		"status":      "r.status",
	}
)

// Dead stock

func selectDeadStocks() sq.SelectBuilder {
	return psql.Select().From("dead_stock ds").Join("item i ON i.id = ds.item_id")
}

func insertDeadStock(ctx context.Context, tx *sqlx.Tx, ds stock.DeadStock) (stock.DeadStock, error) {
	if err := checkBalance(ctx, tx, ds.ItemID, ds.Quantity); err != nil {
		return stock.DeadStock{}, err
	}

	ds.ID = uuid.New().String()
	q := psql.Insert("dead_stock").
		Columns("id", "item_id", "quantity", "reason", "declared_by", "declared_at", "request_id", "created_at").
		Values(ds.ID, ds.ItemID, ds.Quantity, ds.Reason, ds.DeclaredBy, ds.DeclaredAt, ds.RequestID, ds.CreatedAt)
	if _, err := execQuery(ctx, tx, q); err != nil {
		return stock.DeadStock{}, errors.Wrap(constraintErr(err, stockConstraints), "inserting dead stock")
	}
	return ds, nil
}

func (repo stockRepository) CreateDeadStock(ctx context.Context, ds stock.DeadStock) (stock.DeadStock, error) {
	var created stock.DeadStock
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		created, err = insertDeadStock(ctx, tx, ds)
		return err
	})
	return created, err
}

func (repo stockRepository) QueryDeadStocks(ctx context.Context, filter stock.DeadStockFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.DeadStock, int, error) {
	q := selectDeadStocks()
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "i.name", "ds.reason"))
	}
	if filter.ItemID != "" {
		q = q.Where(eqID("ds.item_id", filter.ItemID))
	}
	q = timeRange(q, "ds.declared_at", filter.From, filter.To)

	rows := make([]stock.DeadStock, 0)
	count, err := queryPage(ctx, repo.db, &rows, q, deadStockColumns, orderBy(ordering, deadStockOrdering, "ds.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying dead stock")
	}
	return rows, count, nil
}

func (repo stockRepository) GetDeadStockByID(ctx context.Context, id string) (stock.DeadStock, error) {
	var ds stock.DeadStock
	if err := getRow(ctx, repo.db, &ds, selectDeadStocks().Columns(deadStockColumns...).Where(eqID("ds.id", id))); err != nil {
		return stock.DeadStock{}, trapNoRowsErr(err, stock.ErrDeadStockNotFound, "finding dead stock")
	}
	return ds, nil
}

// Requests

// lockPendingRequest locks the request row of table and checks it is still pending.
func lockPendingRequest(ctx context.Context, tx *sqlx.Tx, table, id string, notFound error) error {
	var status string
	q := psql.Select("status").From(table).Where(eqID("id", id)).Suffix("FOR UPDATE")
	if err := getRow(ctx, tx, &status, q); err != nil {
		return trapNoRowsErr(err, notFound, "locking request")
	}
	if status != stock.StatusPending {
		return stock.ErrRequestNotPending
	}
	return nil
}

func reviewRequest(ctx context.Context, tx *sqlx.Tx, table, id, status string, review stock.ReviewInfo, extra map[string]interface{}) error {
	set := map[string]interface{}{
		"status":      status,
		"reviewed_by": review.By,
		"reviewed_at": review.At,
		"review_note": review.Note,
		"updated_at":  review.At,
	}
	for col, val := range extra {
		set[col] = val
	}
	if _, err := execQuery(ctx, tx, psql.Update(table).SetMap(set).Where(sq.Eq{"id": id})); err != nil {
		return errors.Wrap(err, "reviewing request")
	}
	return nil
}

// Dead stock requests

func selectDeadStockRequests() sq.SelectBuilder {
	return psql.Select().From("dead_stock_request r").Join("item i ON i.id = r.item_id")
}

func getDeadStockRequest(ctx context.Context, q querier, id string) (stock.DeadStockRequest, error) {
	var req stock.DeadStockRequest
	if err := getRow(ctx, q, &req, selectDeadStockRequests().Columns(deadStockRequestColumns...).Where(eqID("r.id", id))); err != nil {
		return stock.DeadStockRequest{}, trapNoRowsErr(err, stock.ErrDeadStockRequestNotFound, "finding dead stock request")
	}
	return req, nil
}

func (repo stockRepository) CreateDeadStockRequest(ctx context.Context, req stock.DeadStockRequest) (stock.DeadStockRequest, error) {
	req.ID = uuid.New().String()
	q := psql.Insert("dead_stock_request").
		Columns("id", "item_id", "quantity", "reason", "status", "requested_by", "review_note", "created_at", "updated_at").
		Values(req.ID, req.ItemID, req.Quantity, req.Reason, req.Status, req.RequestedBy, req.ReviewNote, req.CreatedAt, req.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return stock.DeadStockRequest{}, errors.Wrap(constraintErr(err, stockConstraints), "inserting dead stock request")
	}
	return req, nil
}

func (repo stockRepository) QueryDeadStockRequests(ctx context.Context, filter stock.RequestFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.DeadStockRequest, int, error) {
	q := selectDeadStockRequests()
	if filter.Status != "" {
		q = q.Where(sq.Eq{"r.status": filter.Status})
	}
	if filter.ItemID != "" {
		q = q.Where(eqID("r.item_id", filter.ItemID))
	}
	if filter.RequestedBy != "" {
		q = q.Where(sq.Eq{"r.requested_by": filter.RequestedBy})
	}

	rows := make([]stock.DeadStockRequest, 0)
	count, err := queryPage(ctx, repo.db, &rows, q, deadStockRequestColumns, orderBy(ordering, requestOrdering, "r.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying dead stock requests")
	}
	return rows, count, nil
}

func (repo stockRepository) GetDeadStockRequestByID(ctx context.Context, id string) (stock.DeadStockRequest, error) {
	return getDeadStockRequest(ctx, repo.db, id)
}

func (repo stockRepository) ApproveDeadStockRequest(ctx context.Context, id string, review stock.ReviewInfo, ds stock.DeadStock) (stock.DeadStockRequest, stock.DeadStock, error) {
	var req stock.DeadStockRequest
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if err = lockPendingRequest(ctx, tx, "dead_stock_request", id, stock.ErrDeadStockRequestNotFound); err != nil {
			return err
		}
		ds.RequestID = null.StringFrom(id)
		if ds, err = insertDeadStock(ctx, tx, ds); err != nil {
			return err
		}
		if err = reviewRequest(ctx, tx, "dead_stock_request", id, stock.StatusApproved, review, nil); err != nil {
			return err
		}
		req, err = getDeadStockRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return stock.DeadStockRequest{}, stock.DeadStock{}, err
	}
	return req, ds, nil
}

func (repo stockRepository) RejectDeadStockRequest(ctx context.Context, id string, review stock.ReviewInfo) (stock.DeadStockRequest, error) {
	var req stock.DeadStockRequest
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if err = lockPendingRequest(ctx, tx, "dead_stock_request", id, stock.ErrDeadStockRequestNotFound); err != nil {
			return err
		}
		if err = reviewRequest(ctx, tx, "dead_stock_request", id, stock.StatusRejected, review, nil); err != nil {
			return err
		}
		req, err = getDeadStockRequest(ctx, tx, id)
		return err
	})
	return req, err
}

// Stock-in requests

func selectStockInRequests() sq.SelectBuilder {
	return psql.Select().
		From("stock_in_request r").
		Join("item i ON i.id = r.item_id").
		Join("office o ON o.id = r.office_id")
}

func getStockInRequest(ctx context.Context, q querier, id string) (stock.StockInRequest, error) {
	var req stock.StockInRequest
	if err := getRow(ctx, q, &req, selectStockInRequests().Columns(stockInRequestColumns...).Where(eqID("r.id", id))); err != nil {
		return stock.StockInRequest{}, trapNoRowsErr(err, stock.ErrStockInRequestNotFound, "finding stock-in request")
	}
	return req, nil
}

func (repo stockRepository) CreateStockInRequest(ctx context.Context, req stock.StockInRequest) (stock.StockInRequest, error) {
	req.ID = uuid.New().String()
	q := psql.Insert("stock_in_request").
		Columns("id", "item_id", "office_id", "quantity", "purpose", "status", "requested_by", "review_note", "created_at", "updated_at").
		Values(req.ID, req.ItemID, req.OfficeID, req.Quantity, req.Purpose, req.Status, req.RequestedBy, req.ReviewNote, req.CreatedAt, req.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return stock.StockInRequest{}, errors.Wrap(constraintErr(err, stockConstraints), "inserting stock-in request")
	}
	return req, nil
}

func (repo stockRepository) QueryStockInRequests(ctx context.Context, filter stock.RequestFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.StockInRequest, int, error) {
	q := selectStockInRequests()
	if filter.Status != "" {
		q = q.Where(sq.Eq{"r.status": filter.Status})
	}
	if filter.ItemID != "" {
		q = q.Where(eqID("r.item_id", filter.ItemID))
	}
	if filter.OfficeID != "" {
		q = q.Where(eqID("r.office_id", filter.OfficeID))
	}
	if filter.RequestedBy != "" {
		q = q.Where(sq.Eq{"r.requested_by": filter.RequestedBy})
	}

	rows := make([]stock.StockInRequest, 0)
	count, err := queryPage(ctx, repo.db, &rows, q, stockInRequestColumns, orderBy(ordering, requestOrdering, "r.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying stock-in requests")
	}
	return rows, count, nil
}

func (repo stockRepository) GetStockInRequestByID(ctx context.Context, id string) (stock.StockInRequest, error) {
	return getStockInRequest(ctx, repo.db, id)
}

func (repo stockRepository) ApproveStockInRequest(ctx context.Context, id string, review stock.ReviewInfo, so stock.StockOut) (stock.StockInRequest, stock.StockOut, error) {
	var req stock.StockInRequest
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if err = lockPendingRequest(ctx, tx, "stock_in_request", id, stock.ErrStockInRequestNotFound); err != nil {
			return err
		}
		so.RequestID = null.StringFrom(id)
		if so, err = insertStockOut(ctx, tx, so); err != nil {
			return err
		}
		extra := map[string]interface{}{"stock_out_id": so.ID}
		if err = reviewRequest(ctx, tx, "stock_in_request", id, stock.StatusApproved, review, extra); err != nil {
			return err
		}
		req, err = getStockInRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return stock.StockInRequest{}, stock.StockOut{}, err
	}
	return req, so, nil
}

func (repo stockRepository) RejectStockInRequest(ctx context.Context, id string, review stock.ReviewInfo) (stock.StockInRequest, error) {
	var req stock.StockInRequest
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if err = lockPendingRequest(ctx, tx, "stock_in_request", id, stock.ErrStockInRequestNotFound); err != nil {
			return err
		}
		if err = reviewRequest(ctx, tx, "stock_in_request", id, stock.StatusRejected, review, nil); err != nil {
			return err
		}
		req, err = getStockInRequest(ctx, tx, id)
		return err
	})
	return req, err
}
