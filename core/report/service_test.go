package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/stock"
)

type stockQuerierMock struct {
	current []stock.CurrentStock
	history []stock.HistoryEntry
}

func (m *stockQuerierMock) QueryCurrentStock(_ context.Context, filter stock.CurrentStockFilter, _ []core.DBOrdering, page core.Pagination) (core.Page[stock.CurrentStock], error) {
	var rows []stock.CurrentStock
	for _, r := range m.current {
		if filter.LowStock != nil && r.LowStock != *filter.LowStock {
			continue
		}
		rows = append(rows, r)
	}
	return core.NewPage(len(rows), paginate(rows, page)), nil
}

func (m *stockQuerierMock) QueryHistory(_ context.Context, _ stock.HistoryFilter, _ []core.DBOrdering, page core.Pagination) (core.Page[stock.HistoryEntry], error) {
	return core.NewPage(len(m.history), paginate(m.history, page)), nil
}

func paginate[T any](rows []T, page core.Pagination) []T {
	start := int(page.Offset())
	if start >= len(rows) {
		return nil
	}
	end := start + int(page.Limit())
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func newStockQuerierMock(n int) *stockQuerierMock {
	m := new(stockQuerierMock)
	for i := 0; i < n; i++ {
		cs := stock.CurrentStock{
			ItemID:       "item",
			ItemName:     "Chalk box",
			CategoryName: "Stationery",
			Unit:         "box",
			TotalIn:      10,
			TotalOut:     i % 10,
			ReorderLevel: 5,
		}
		cs.ComputeBalance()
		m.current = append(m.current, cs)
		m.history = append(m.history, stock.HistoryEntry{
			Kind: stock.KindIn, RefID: "ref", ItemName: "Chalk box", Quantity: 10,
			Date: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC), Party: "Acme Ltd",
		})
	}
	return m
}

func TestCleanFormat(t *testing.T) {
	format, err := CleanFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	format, err = CleanFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, format)

	_, err = CleanFormat("docx")
	require.Error(t, err)
	_, ok := err.(*core.ValidationError)
	assert.True(t, ok)
}

func TestLowStock(t *testing.T) {
	svc := NewService(nil, newStockQuerierMock(1200))

	rows, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	// balance = 10 - (i % 10) <= 5 for i % 10 in [5, 9]
	assert.Len(t, rows, 600)
	for _, r := range rows {
		assert.True(t, r.LowStock)
	}
}

func TestExportCurrentStock(t *testing.T) {
	svc := NewService(nil, newStockQuerierMock(12))

	t.Run("xlsx", func(t *testing.T) {
		export, err := svc.ExportCurrentStock(context.Background(), stock.CurrentStockFilter{}, "")
		require.NoError(t, err)
		assert.Equal(t, contentTypeXLSX, export.ContentType)
		assert.Contains(t, export.Filename, "current-stock-")
		assert.Contains(t, export.Filename, ".xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(export.Content))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("current-stock")
		require.NoError(t, err)
		require.Len(t, rows, 13) // header + 12 rows
		assert.Equal(t, "Item", rows[0][0])
		assert.Equal(t, "Chalk box", rows[1][0])
	})

	t.Run("pdf", func(t *testing.T) {
		export, err := svc.ExportCurrentStock(context.Background(), stock.CurrentStockFilter{}, FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, contentTypePDF, export.ContentType)
		assert.True(t, bytes.HasPrefix(export.Content, []byte("%PDF")))
	})
}

func TestExportHistory(t *testing.T) {
	svc := NewService(nil, newStockQuerierMock(3))

	export, err := svc.ExportHistory(context.Background(), stock.HistoryFilter{}, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(export.Content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("stock-history")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2024-01-02 03:04", rows[1][0])
	assert.Equal(t, "Acme Ltd", rows[1][4])
}
