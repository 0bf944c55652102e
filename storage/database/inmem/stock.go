package inmemdb

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
)

var (
	stockInComparers = comparers[stock.StockIn]{
		"received_at":   func(a, b stock.StockIn) int { return a.ReceivedAt.Compare(b.ReceivedAt) },
		"quantity":      func(a, b stock.StockIn) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"unit_price":    func(a, b stock.StockIn) int { return a.UnitPrice.Cmp(b.UnitPrice) },
		"item_name":     func(a, b stock.StockIn) int { return compareFold(a.ItemName, b.ItemName) },
		"supplier_name": func(a, b stock.StockIn) int { return compareFold(a.SupplierName, b.SupplierName) },
		"created_at":    func(a, b stock.StockIn) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	stockOutComparers = comparers[stock.StockOut]{
		"issued_at":   func(a, b stock.StockOut) int { return a.IssuedAt.Compare(b.IssuedAt) },
		"quantity":    func(a, b stock.StockOut) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"item_name":   func(a, b stock.StockOut) int { return compareFold(a.ItemName, b.ItemName) },
		"office_name": func(a, b stock.StockOut) int { return compareFold(a.OfficeName, b.OfficeName) },
		"created_at":  func(a, b stock.StockOut) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	currentStockComparers = comparers[stock.CurrentStock]{
		"item_name":     func(a, b stock.CurrentStock) int { return compareFold(a.ItemName, b.ItemName) },
		"category_name": func(a, b stock.CurrentStock) int { return compareFold(a.CategoryName, b.CategoryName) },
		"balance":       func(a, b stock.CurrentStock) int { return cmp.Compare(a.Balance, b.Balance) },
		"total_in":      func(a, b stock.CurrentStock) int { return cmp.Compare(a.TotalIn, b.TotalIn) },
		"total_out":     func(a, b stock.CurrentStock) int { return cmp.Compare(a.TotalOut, b.TotalOut) },
		"total_dead":    func(a, b stock.CurrentStock) int { return cmp.Compare(a.TotalDead, b.TotalDead) },
	}
	historyComparers = comparers[stock.HistoryEntry]{
		"date":      func(a, b stock.HistoryEntry) int { return a.Date.Compare(b.Date) },
		"quantity":  func(a, b stock.HistoryEntry) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"item_name": func(a, b stock.HistoryEntry) int { return compareFold(a.ItemName, b.ItemName) },
		"kind":      func(a, b stock.HistoryEntry) int { return strings.Compare(a.Kind, b.Kind) },
	}
)

type stockRepository struct {
	db *DB
}

var _ stock.Repository = (*stockRepository)(nil) // interface compliance check

func NewStockRepository(db *DB) *stockRepository {
	return &stockRepository{db: db}
}

// Balances. The caller must hold the lock.

func (db *DB) currentStock(itemID string) stock.CurrentStock {
	item := db.fillItem(db.items[itemID])
	cs := stock.CurrentStock{
		ItemID:       item.ID,
		ItemName:     item.Name,
		CategoryID:   item.CategoryID,
		CategoryName: item.CategoryName,
		Unit:         item.Unit,
		ReorderLevel: item.ReorderLevel,
	}
	for _, si := range db.stockIns {
		if si.ItemID == itemID {
			cs.TotalIn += si.Quantity
		}
	}
	for _, so := range db.stockOuts {
		if so.ItemID == itemID {
			cs.TotalOut += so.Quantity
		}
	}
	for _, ds := range db.deadStocks {
		if ds.ItemID == itemID {
			cs.TotalDead += ds.Quantity
		}
	}
	cs.ComputeBalance()
	return cs
}

// checkBalance fails with *stock.InsufficientStockError if quantity cannot be taken out of the item's balance.
func (db *DB) checkBalance(itemID string, quantity int) error {
	if _, ok := db.items[itemID]; !ok {
		return stock.ErrUnknownItem
	}
	if balance := db.currentStock(itemID).Balance; balance < quantity {
		return &stock.InsufficientStockError{ItemID: itemID, Available: balance, Requested: quantity}
	}
	return nil
}

// Stock-ins

func (db *DB) fillStockIn(si stock.StockIn) stock.StockIn {
	si.ItemName = db.items[si.ItemID].Name
	si.SupplierName = db.suppliers[si.SupplierID].Name
	si.DepartmentName = db.departments[si.DepartmentID.String].Name
	si.ComputeTotal()
	return si
}

func (db *DB) checkStockInRefs(si stock.StockIn) error {
	if _, ok := db.items[si.ItemID]; !ok {
		return stock.ErrUnknownItem
	}
	if _, ok := db.suppliers[si.SupplierID]; !ok {
		return stock.ErrUnknownSupplier
	}
	if _, ok := db.departments[si.DepartmentID.String]; si.DepartmentID.Valid && !ok {
		return stock.ErrUnknownDepartment
	}
	return nil
}

func (repo *stockRepository) CreateStockIn(_ context.Context, si stock.StockIn) (stock.StockIn, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.checkStockInRefs(si); err != nil {
		return stock.StockIn{}, err
	}
	si.ID = newID()
	repo.db.stockIns[si.ID] = si
	return repo.db.fillStockIn(si), nil
}

func (repo *stockRepository) QueryStockIns(_ context.Context, filter stock.StockInFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.StockIn, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(si stock.StockIn) bool {
		switch {
		case filter.Search != "" && !containsFold(filter.Search, si.ItemName, si.SupplierName, si.InvoiceNo):
			return false
		case filter.ItemID != "" && si.ItemID != filter.ItemID:
			return false
		case filter.SupplierID != "" && si.SupplierID != filter.SupplierID:
			return false
		case filter.DepartmentID != "" && si.DepartmentID.String != filter.DepartmentID:
			return false
		case filter.IsVerified != nil && si.IsVerified != *filter.IsVerified:
			return false
		}
		return inRange(si.ReceivedAt, filter.From, filter.To)
	}
	rows, count := query(repo.db.stockIns, repo.db.fillStockIn, keep, ordering, stockInComparers, func(si stock.StockIn) string { return si.ID }, page)
	return rows, count, nil
}

func (repo *stockRepository) GetStockInByID(_ context.Context, id string) (stock.StockIn, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if si, ok := repo.db.stockIns[id]; ok {
		return repo.db.fillStockIn(si), nil
	}
	return stock.StockIn{}, stock.ErrStockInNotFound
}

func (repo *stockRepository) unverifiedStockIn(id string) (stock.StockIn, error) {
	si, ok := repo.db.stockIns[id]
	if !ok {
		return stock.StockIn{}, stock.ErrStockInNotFound
	}
	if si.IsVerified {
		return stock.StockIn{}, stock.ErrStockInVerified
	}
	return si, nil
}

func (repo *stockRepository) UpdateStockIn(_ context.Context, si stock.StockIn) (stock.StockIn, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, err := repo.unverifiedStockIn(si.ID)
	if err != nil {
		return stock.StockIn{}, err
	}
	si.ItemID = orig.ItemID
	if err = repo.db.checkStockInRefs(si); err != nil {
		return stock.StockIn{}, err
	}
	if si.Quantity < orig.Quantity {
		if err = repo.db.checkBalance(orig.ItemID, orig.Quantity-si.Quantity); err != nil {
			return stock.StockIn{}, err
		}
	}
	repo.db.stockIns[si.ID] = si
	return repo.db.fillStockIn(si), nil
}

func (repo *stockRepository) VerifyStockIn(_ context.Context, id, by string, at time.Time) (stock.StockIn, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	si, ok := repo.db.stockIns[id]
	if !ok {
		return stock.StockIn{}, stock.ErrStockInNotFound
	}
	if si.IsVerified {
		return stock.StockIn{}, stock.ErrStockInAlreadyVerified
	}
	si.IsVerified = true
	si.VerifiedBy.SetValid(by)
	si.VerifiedAt.SetValid(at)
	si.UpdatedAt = at
	repo.db.stockIns[id] = si
	return repo.db.fillStockIn(si), nil
}

func (repo *stockRepository) DeleteStockIn(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	si, err := repo.unverifiedStockIn(id)
	if err != nil {
		return err
	}
	if err = repo.db.checkBalance(si.ItemID, si.Quantity); err != nil {
		return err
	}
	delete(repo.db.stockIns, id)
	return nil
}

// Stock-outs

func (db *DB) fillStockOut(so stock.StockOut) stock.StockOut {
	so.ItemName = db.items[so.ItemID].Name
	so.OfficeName = db.offices[so.OfficeID.String].Name
	so.DepartmentName = db.departments[so.DepartmentID.String].Name
	return so
}

// insertStockOut stores so if the item balance allows it. The caller must hold the lock.
func (db *DB) insertStockOut(so stock.StockOut) (stock.StockOut, error) {
	if _, ok := db.offices[so.OfficeID.String]; so.OfficeID.Valid && !ok {
		return stock.StockOut{}, stock.ErrUnknownOffice
	}
	if _, ok := db.departments[so.DepartmentID.String]; so.DepartmentID.Valid && !ok {
		return stock.StockOut{}, stock.ErrUnknownDepartment
	}
	if err := db.checkBalance(so.ItemID, so.Quantity); err != nil {
		return stock.StockOut{}, err
	}
	so.ID = newID()
	db.stockOuts[so.ID] = so
	return db.fillStockOut(so), nil
}

func (repo *stockRepository) CreateStockOut(_ context.Context, so stock.StockOut) (stock.StockOut, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return repo.db.insertStockOut(so)
}

func (repo *stockRepository) QueryStockOuts(_ context.Context, filter stock.StockOutFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.StockOut, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(so stock.StockOut) bool {
		switch {
		case filter.Search != "" && !containsFold(filter.Search, so.ItemName, so.OfficeName, so.IssuedTo):
			return false
		case filter.ItemID != "" && so.ItemID != filter.ItemID:
			return false
		case filter.OfficeID != "" && so.OfficeID.String != filter.OfficeID:
			return false
		case filter.DepartmentID != "" && so.DepartmentID.String != filter.DepartmentID:
			return false
		}
		return inRange(so.IssuedAt, filter.From, filter.To)
	}
	rows, count := query(repo.db.stockOuts, repo.db.fillStockOut, keep, ordering, stockOutComparers, func(so stock.StockOut) string { return so.ID }, page)
	return rows, count, nil
}

func (repo *stockRepository) GetStockOutByID(_ context.Context, id string) (stock.StockOut, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if so, ok := repo.db.stockOuts[id]; ok {
		return repo.db.fillStockOut(so), nil
	}
	return stock.StockOut{}, stock.ErrStockOutNotFound
}

func (repo *stockRepository) DeleteStockOut(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.stockOuts[id]; !ok {
		return stock.ErrStockOutNotFound
	}
	delete(repo.db.stockOuts, id)
	return nil
}

// Current stock

func (repo *stockRepository) QueryCurrentStock(_ context.Context, filter stock.CurrentStockFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.CurrentStock, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	table := make(map[string]stock.CurrentStock, len(repo.db.items))
	for id := range repo.db.items {
		table[id] = repo.db.currentStock(id)
	}
	keep := func(cs stock.CurrentStock) bool {
		switch {
		case filter.Search != "" && !containsFold(filter.Search, cs.ItemName, cs.CategoryName):
			return false
		case filter.CategoryID != "" && cs.CategoryID != filter.CategoryID:
			return false
		}
		return filter.LowStock == nil || cs.LowStock == *filter.LowStock
	}
	rows, count := query(table, nil, keep, ordering, currentStockComparers, func(cs stock.CurrentStock) string { return cs.ItemID }, page)
	return rows, count, nil
}

func (repo *stockRepository) GetCurrentStock(_ context.Context, itemID string) (stock.CurrentStock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.items[itemID]; !ok {
		return stock.CurrentStock{}, stock.ErrItemStockNotFound
	}
	return repo.db.currentStock(itemID), nil
}

// History

func (db *DB) history() map[string]stock.HistoryEntry {
	entries := make(map[string]stock.HistoryEntry, len(db.stockIns)+len(db.stockOuts)+len(db.deadStocks))
	for _, si := range db.stockIns {
		entries[si.ID] = stock.HistoryEntry{
			Kind:         stock.KindIn,
			RefID:        si.ID,
			ItemID:       si.ItemID,
			ItemName:     db.items[si.ItemID].Name,
			DepartmentID: si.DepartmentID,
			Quantity:     si.Quantity,
			Date:         si.ReceivedAt,
			Party:        db.suppliers[si.SupplierID].Name,
		}
	}
	for _, so := range db.stockOuts {
		party := so.IssuedTo
		if party == "" {
			party = db.offices[so.OfficeID.String].Name
		}
		entries[so.ID] = stock.HistoryEntry{
			Kind:         stock.KindOut,
			RefID:        so.ID,
			ItemID:       so.ItemID,
			ItemName:     db.items[so.ItemID].Name,
			DepartmentID: so.DepartmentID,
			Quantity:     so.Quantity,
			Date:         so.IssuedAt,
			Party:        party,
		}
	}
	for _, ds := range db.deadStocks {
		entries[ds.ID] = stock.HistoryEntry{
			Kind:     stock.KindDead,
			RefID:    ds.ID,
			ItemID:   ds.ItemID,
			ItemName: db.items[ds.ItemID].Name,
			Quantity: ds.Quantity,
			Date:     ds.DeclaredAt,
			Party:    ds.Reason,
		}
	}
	return entries
}

func (repo *stockRepository) QueryHistory(_ context.Context, filter stock.HistoryFilter, ordering []core.DBOrdering, page core.Pagination) ([]stock.HistoryEntry, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(e stock.HistoryEntry) bool {
		switch {
		case filter.ItemID != "" && e.ItemID != filter.ItemID:
			return false
		case filter.DepartmentID != "" && e.DepartmentID.String != filter.DepartmentID:
			return false
		case filter.Kind != "" && e.Kind != filter.Kind:
			return false
		}
		return inRange(e.Date, filter.From, filter.To)
	}
	entries, count := query(repo.db.history(), nil, keep, ordering, historyComparers, func(e stock.HistoryEntry) string { return e.RefID }, page)
	return entries, count, nil
}
