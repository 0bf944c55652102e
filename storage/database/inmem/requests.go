package inmemdb

import (
	"cmp"
	"context"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
)

var (
	deadStockComparers = comparers[stock.DeadStock]{
		"declared_at": func(a, b stock.DeadStock) int { return a.DeclaredAt.Compare(b.DeclaredAt) },
		"quantity":    func(a, b stock.DeadStock) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"item_name":   func(a, b stock.DeadStock) int { return compareFold(a.ItemName, b.ItemName) },
		"created_at":  func(a, b stock.DeadStock) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	deadStockRequestComparers = comparers[stock.DeadStockRequest]{
		"created_at": func(a, b stock.DeadStockRequest) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"quantity":   func(a, b stock.DeadStockRequest) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"item_name":  func(a, b stock.DeadStockRequest) int { return compareFold(a.ItemName, b.ItemName) },
		"status":     func(a, b stock.DeadStockRequest) int { return strings.Compare(a.Status, b.Status) },
	}
	stockInRequestComparers = comparers[stock.StockInRequest]{
		"created_at":  func(a, b stock.StockInRequest) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"quantity":    func(a, b stock.StockInRequest) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"item_name":   func(a, b stock.StockInRequest) int { return compareFold(a.ItemName, b.ItemName) },
		"office_name": func(a, b stock.StockInRequest) int { return compareFold(a.OfficeName, b.OfficeName) },
		"status":      func(a, b stock.StockInRequest) int { return strings.Compare(a.Status, b.Status) },
	}
)

// Dead stock

func (db *DB) fillDeadStock(ds stock.DeadStock) stock.DeadStock {
	ds.ItemName = db.items[ds.ItemID].Name
	return ds
}

func (db *DB) insertDeadStock(ds stock.DeadStock) (stock.DeadStock, error) {
	if err := db.checkBalance(ds.ItemID, ds.Quantity); err != nil {
		return stock.DeadStock{}, err
	}
	ds.ID = newID()
	db.deadStocks[ds.ID] = ds
	return db.fillDeadStock(ds), nil
}

func (repo *stockRepository) CreateDeadStock(_ context.Context, ds stock.DeadStock) (stock.DeadStock, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return repo.db.insertDeadStock(ds)
}

func (repo *stockRepository) QueryDeadStocks(_ context.Context, filter stock.DeadStockFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.DeadStock, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(ds stock.DeadStock) bool {
		switch {
		case filter.Search != "" && !containsFold(filter.Search, ds.ItemName, ds.Reason):
			return false
		case filter.ItemID != "" && ds.ItemID != filter.ItemID:
			return false
		}
		return inRange(ds.DeclaredAt, filter.From, filter.To)
	}
	rows, count := query(repo.db.deadStocks, repo.db.fillDeadStock, keep, ordering, deadStockComparers, func(ds stock.DeadStock) string { return ds.ID }, page)
	return rows, count, nil
}

func (repo *stockRepository) GetDeadStockByID(_ context.Context, id string) (stock.DeadStock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ds, ok := repo.db.deadStocks[id]; ok {
		return repo.db.fillDeadStock(ds), nil
	}
	return stock.DeadStock{}, stock.ErrDeadStockNotFound
}

// Dead stock requests

func (db *DB) fillDeadStockRequest(req stock.DeadStockRequest) stock.DeadStockRequest {
	req.ItemName = db.items[req.ItemID].Name
	return req
}

func (repo *stockRepository) CreateDeadStockRequest(_ context.Context, req stock.DeadStockRequest) (stock.DeadStockRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.items[req.ItemID]; !ok {
		return stock.DeadStockRequest{}, stock.ErrUnknownItem
	}
	req.ID = newID()
	repo.db.deadStockRequests[req.ID] = req
	return repo.db.fillDeadStockRequest(req), nil
}

func (repo *stockRepository) QueryDeadStockRequests(_ context.Context, filter stock.RequestFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.DeadStockRequest, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(req stock.DeadStockRequest) bool {
		switch {
		case filter.Status != "" && req.Status != filter.Status:
			return false
		case filter.ItemID != "" && req.ItemID != filter.ItemID:
			return false
		}
		return filter.RequestedBy == "" || req.RequestedBy == filter.RequestedBy
	}
	rows, count := query(repo.db.deadStockRequests, repo.db.fillDeadStockRequest, keep, ordering, deadStockRequestComparers, func(r stock.DeadStockRequest) string { return r.ID }, page)
	return rows, count, nil
}

func (repo *stockRepository) GetDeadStockRequestByID(_ context.Context, id string) (stock.DeadStockRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.deadStockRequests[id]; ok {
		return repo.db.fillDeadStockRequest(req), nil
	}
	return stock.DeadStockRequest{}, stock.ErrDeadStockRequestNotFound
}

func (repo *stockRepository) pendingDeadStockRequest(id string) (stock.DeadStockRequest, error) {
	req, ok := repo.db.deadStockRequests[id]
	if !ok {
		return stock.DeadStockRequest{}, stock.ErrDeadStockRequestNotFound
	}
	if req.Status != stock.StatusPending {
		return stock.DeadStockRequest{}, stock.ErrRequestNotPending
	}
	return req, nil
}

func (repo *stockRepository) ApproveDeadStockRequest(_ context.Context, id string, review stock.ReviewInfo, ds stock.DeadStock) (stock.DeadStockRequest, stock.DeadStock, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	req, err := repo.pendingDeadStockRequest(id)
	if err != nil {
		return stock.DeadStockRequest{}, stock.DeadStock{}, err
	}
	ds.RequestID = null.StringFrom(id)
	if ds, err = repo.db.insertDeadStock(ds); err != nil {
		return stock.DeadStockRequest{}, stock.DeadStock{}, err
	}
	req.Status = stock.StatusApproved
	req.ReviewedBy = null.StringFrom(review.By)
	req.ReviewedAt = null.TimeFrom(review.At)
	req.ReviewNote = review.Note
	req.UpdatedAt = review.At
	repo.db.deadStockRequests[id] = req
	return repo.db.fillDeadStockRequest(req), ds, nil
}

func (repo *stockRepository) RejectDeadStockRequest(_ context.Context, id string, review stock.ReviewInfo) (stock.DeadStockRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	req, err := repo.pendingDeadStockRequest(id)
	if err != nil {
		return stock.DeadStockRequest{}, err
	}
	req.Status = stock.StatusRejected
	req.ReviewedBy = null.StringFrom(review.By)
	req.ReviewedAt = null.TimeFrom(review.At)
	req.ReviewNote = review.Note
	req.UpdatedAt = review.At
	repo.db.deadStockRequests[id] = req
	return repo.db.fillDeadStockRequest(req), nil
}

// Stock-in requests

func (db *DB) fillStockInRequest(req stock.StockInRequest) stock.StockInRequest {
	req.ItemName = db.items[req.ItemID].Name
	req.OfficeName = db.offices[req.OfficeID].Name
	return req
}

func (repo *stockRepository) CreateStockInRequest(_ context.Context, req stock.StockInRequest) (stock.StockInRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.items[req.ItemID]; !ok {
		return stock.StockInRequest{}, stock.ErrUnknownItem
	}
	if _, ok := repo.db.offices[req.OfficeID]; !ok {
		return stock.StockInRequest{}, stock.ErrUnknownOffice
	}
	req.ID = newID()
	repo.db.stockInRequests[req.ID] = req
	return repo.db.fillStockInRequest(req), nil
}

func (repo *stockRepository) QueryStockInRequests(_ context.Context, filter stock.RequestFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.StockInRequest, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(req stock.StockInRequest) bool {
		switch {
		case filter.Status != "" && req.Status != filter.Status:
			return false
		case filter.ItemID != "" && req.ItemID != filter.ItemID:
			return false
		case filter.OfficeID != "" && req.OfficeID != filter.OfficeID:
			return false
		}
		return filter.RequestedBy == "" || req.RequestedBy == filter.RequestedBy
	}
	rows, count := query(repo.db.stockInRequests, repo.db.fillStockInRequest, keep, ordering, stockInRequestComparers, func(r stock.StockInRequest) string { return r.ID }, page)
	return rows, count, nil
}

func (repo *stockRepository) GetStockInRequestByID(_ context.Context, id string) (stock.StockInRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.stockInRequests[id]; ok {
		return repo.db.fillStockInRequest(req), nil
	}
	return stock.StockInRequest{}, stock.ErrStockInRequestNotFound
}

func (repo *stockRepository) pendingStockInRequest(id string) (stock.StockInRequest, error) {
	req, ok := repo.db.stockInRequests[id]
	if !ok {
		return stock.StockInRequest{}, stock.ErrStockInRequestNotFound
	}
	if req.Status != stock.StatusPending {
		return stock.StockInRequest{}, stock.ErrRequestNotPending
	}
	return req, nil
}

func (repo *stockRepository) ApproveStockInRequest(_ context.Context, id string, review stock.ReviewInfo, so stock.StockOut) (stock.StockInRequest, stock.StockOut, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	req, err := repo.pendingStockInRequest(id)
	if err != nil {
		return stock.StockInRequest{}, stock.StockOut{}, err
	}
	so.RequestID = null.StringFrom(id)
	if so, err = repo.db.insertStockOut(so); err != nil {
		return stock.StockInRequest{}, stock.StockOut{}, err
	}
	req.Status = stock.StatusApproved
	req.ReviewedBy = null.StringFrom(review.By)
	req.ReviewedAt = null.TimeFrom(review.At)
	req.ReviewNote = review.Note
	req.StockOutID = null.StringFrom(so.ID)
	req.UpdatedAt = review.At
	repo.db.stockInRequests[id] = req
	return repo.db.fillStockInRequest(req), so, nil
}

func (repo *stockRepository) RejectStockInRequest(_ context.Context, id string, review stock.ReviewInfo) (stock.StockInRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	req, err := repo.pendingStockInRequest(id)
	if err != nil {
		return stock.StockInRequest{}, err
	}
	req.Status = stock.StatusRejected
	req.ReviewedBy = null.StringFrom(review.By)
	req.ReviewedAt = null.TimeFrom(review.At)
	req.ReviewNote = review.Note
	req.UpdatedAt = review.At
	repo.db.stockInRequests[id] = req
	return repo.db.fillStockInRequest(req), nil
}
