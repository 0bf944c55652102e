package inmemdb

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/unistock/stockroom/core/report"
	"github.com/unistock/stockroom/core/stock"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) Summary(_ context.Context, filter report.SummaryFilter) (report.Summary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	summary := report.Summary{
		TotalItems:   len(repo.db.items),
		StockInValue: decimal.Zero,
		ByDepartment: make([]report.DepartmentSummary, 0, len(repo.db.departments)),
	}
	byDept := make(map[string]*report.DepartmentSummary, len(repo.db.departments))
	for _, dept := range repo.db.departments {
		if filter.DepartmentID != "" && dept.ID != filter.DepartmentID {
			continue
		}
		byDept[dept.ID] = &report.DepartmentSummary{
			DepartmentID:   dept.ID,
			DepartmentName: dept.Name,
			Value:          decimal.Zero,
		}
	}

	for _, si := range repo.db.stockIns {
		if filter.DepartmentID != "" && si.DepartmentID.String != filter.DepartmentID {
			continue
		}
		if !inRange(si.ReceivedAt, filter.From, filter.To) {
			continue
		}
		value := si.UnitPrice.Mul(decimal.NewFromInt(int64(si.Quantity)))
		summary.TotalIn += si.Quantity
		summary.StockInValue = summary.StockInValue.Add(value)
		if ds, ok := byDept[si.DepartmentID.String]; ok {
			ds.TotalIn += si.Quantity
			ds.Value = ds.Value.Add(value)
		}
	}
	for _, so := range repo.db.stockOuts {
		if filter.DepartmentID != "" && so.DepartmentID.String != filter.DepartmentID {
			continue
		}
		if !inRange(so.IssuedAt, filter.From, filter.To) {
			continue
		}
		summary.TotalOut += so.Quantity
		if ds, ok := byDept[so.DepartmentID.String]; ok {
			ds.TotalOut += so.Quantity
		}
	}
	// dead stock is not attributed to departments
	for _, ds := range repo.db.deadStocks {
		if inRange(ds.DeclaredAt, filter.From, filter.To) {
			summary.TotalDead += ds.Quantity
		}
	}

	for id := range repo.db.items {
		if repo.db.currentStock(id).LowStock {
			summary.LowStockCount++
		}
	}
	for _, req := range repo.db.deadStockRequests {
		if req.Status == stock.StatusPending {
			summary.PendingRequests++
		}
	}
	for _, req := range repo.db.stockInRequests {
		if req.Status == stock.StatusPending {
			summary.PendingRequests++
		}
	}

	for _, ds := range byDept {
		summary.ByDepartment = append(summary.ByDepartment, *ds)
	}
	slices.SortFunc(summary.ByDepartment, func(a, b report.DepartmentSummary) int {
		if res := compareFold(a.DepartmentName, b.DepartmentName); res != 0 {
			return res
		}
		return compareFold(a.DepartmentID, b.DepartmentID)
	})
	return summary, nil
}
