package report

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
)

var errUnknownFormat = errors.New("format must be one of xlsx or pdf")

type (
	Repository interface {
		Summary(ctx context.Context, filter SummaryFilter) (Summary, error)
	}

	// StockQuerier is the part of stock.Service reports are built from.
	StockQuerier interface {
		QueryCurrentStock(ctx context.Context, filter stock.CurrentStockFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[stock.CurrentStock], error)
		QueryHistory(ctx context.Context, filter stock.HistoryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[stock.HistoryEntry], error)
	}

	Service interface {
		Summary(ctx context.Context, filter SummaryFilter) (Summary, error)
		// LowStock returns the items whose balance is at or below their reorder level.
		LowStock(ctx context.Context) ([]stock.CurrentStock, error)
		ExportCurrentStock(ctx context.Context, filter stock.CurrentStockFilter, format string) (Export, error)
		ExportHistory(ctx context.Context, filter stock.HistoryFilter, format string) (Export, error)
	}

	service struct {
		repo  Repository
		stock StockQuerier
	}
)

func NewService(repo Repository, stockSvc StockQuerier) Service {
	return &service{repo: repo, stock: stockSvc}
}

// CleanFormat defaults an empty format to xlsx and rejects unknown ones.
func CleanFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatPDF:
		return format, nil
	}
	return "", core.NewFieldValidationError("format", errUnknownFormat)
}

func (svc *service) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	summary, err := svc.repo.Summary(ctx, filter)
	if err != nil {
		return Summary{}, errors.Wrap(err, "computing summary")
	}
	if summary.ByDepartment == nil {
		summary.ByDepartment = []DepartmentSummary{}
	}
	return summary, nil
}

func (svc *service) LowStock(ctx context.Context) ([]stock.CurrentStock, error) {
	lowStock := true
	return svc.allCurrentStock(ctx, stock.CurrentStockFilter{LowStock: &lowStock})
}

// allCurrentStock pages through every current stock row matching filter.
func (svc *service) allCurrentStock(ctx context.Context, filter stock.CurrentStockFilter) ([]stock.CurrentStock, error) {
	ordering := []core.DBOrdering{{Field: "item_name", Ascending: true}}
	var rows []stock.CurrentStock
	for page := 1; ; page++ {
		res, err := svc.stock.QueryCurrentStock(ctx, filter, ordering, core.NewPagination(page, core.MaxPageSize))
		if err != nil {
			return nil, errors.Wrap(err, "querying current stock")
		}
		rows = append(rows, res.Results...)
		if len(res.Results) < core.MaxPageSize || len(rows) >= res.Count {
			break
		}
	}
	if rows == nil {
		rows = []stock.CurrentStock{}
	}
	return rows, nil
}

func (svc *service) allHistory(ctx context.Context, filter stock.HistoryFilter) ([]stock.HistoryEntry, error) {
	ordering := []core.DBOrdering{{Field: "date", Ascending: false}}
	var entries []stock.HistoryEntry
	for page := 1; ; page++ {
		res, err := svc.stock.QueryHistory(ctx, filter, ordering, core.NewPagination(page, core.MaxPageSize))
		if err != nil {
			return nil, errors.Wrap(err, "querying stock history")
		}
		entries = append(entries, res.Results...)
		if len(res.Results) < core.MaxPageSize || len(entries) >= res.Count {
			break
		}
	}
	return entries, nil
}

func (svc *service) ExportCurrentStock(ctx context.Context, filter stock.CurrentStockFilter, format string) (Export, error) {
	format, err := CleanFormat(format)
	if err != nil {
		return Export{}, err
	}
	rows, err := svc.allCurrentStock(ctx, filter)
	if err != nil {
		return Export{}, err
	}
	return render(newCurrentStockTable(rows), format)
}

func (svc *service) ExportHistory(ctx context.Context, filter stock.HistoryFilter, format string) (Export, error) {
	format, err := CleanFormat(format)
	if err != nil {
		return Export{}, err
	}
	entries, err := svc.allHistory(ctx, filter)
	if err != nil {
		return Export{}, err
	}
	return render(newHistoryTable(entries), format)
}
