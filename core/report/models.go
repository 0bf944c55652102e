package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

type SummaryFilter struct {
	DepartmentID string
	From         time.Time
	To           time.Time
}

type DepartmentSummary struct {
	DepartmentID   string          `json:"department_id" db:"department_id"`
	DepartmentName string          `json:"department_name" db:"department_name"`
	TotalIn        int             `json:"total_in" db:"total_in"`
	TotalOut       int             `json:"total_out" db:"total_out"`
	Value          decimal.Decimal `json:"value" db:"value"`
}

type Summary struct {
	TotalItems      int                 `json:"total_items"`
	TotalIn         int                 `json:"total_in"`
	TotalOut        int                 `json:"total_out"`
	TotalDead       int                 `json:"total_dead"`
	StockInValue    decimal.Decimal     `json:"stock_in_value"`
	LowStockCount   int                 `json:"low_stock_count"`
	PendingRequests int                 `json:"pending_requests"`
	ByDepartment    []DepartmentSummary `json:"by_department"`
}

// Export is a rendered report file.
type Export struct {
	Filename    string
	ContentType string
	Content     []byte
}
