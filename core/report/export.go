package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/unistock/stockroom/core/stock"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"

	pdfPageWidth = 277 // A4 landscape minus margins, in mm
)

// table is the format independent content of an export.
type table struct {
	Title   string
	Name    string // sheet & file base name
	Headers []string
	Weights []float64 // relative column widths
	Rows    [][]string
}

func newCurrentStockTable(rows []stock.CurrentStock) table {
	t := table{
		Title:   "Current stock",
		Name:    "current-stock",
		Headers: []string{"Item", "Category", "Unit", "In", "Out", "Dead", "Balance", "Reorder level", "Low stock"},
		Weights: []float64{3, 2, 1, 1, 1, 1, 1, 1.2, 1},
	}
	for _, r := range rows {
		lowStock := ""
		if r.LowStock {
			lowStock = "yes"
		}
		t.Rows = append(t.Rows, []string{
			r.ItemName, r.CategoryName, r.Unit,
			strconv.Itoa(r.TotalIn), strconv.Itoa(r.TotalOut), strconv.Itoa(r.TotalDead),
			strconv.Itoa(r.Balance), strconv.Itoa(r.ReorderLevel), lowStock,
		})
	}
	return t
}

func newHistoryTable(entries []stock.HistoryEntry) table {
	t := table{
		Title:   "Stock history",
		Name:    "stock-history",
		Headers: []string{"Date", "Kind", "Item", "Quantity", "Party", "Reference"},
		Weights: []float64{1.5, 0.8, 3, 1, 3, 3},
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			e.Date.Format("2006-01-02 15:04"), e.Kind, e.ItemName,
			strconv.Itoa(e.Quantity), e.Party, e.RefID,
		})
	}
	return t
}

func render(t table, format string) (Export, error) {
	var (
		content []byte
		ct      string
		err     error
	)
	switch format {
	case FormatPDF:
		content, err = renderPDF(t)
		ct = contentTypePDF
	default:
		content, err = renderXLSX(t)
		ct = contentTypeXLSX
	}
	if err != nil {
		return Export{}, errors.Wrapf(err, "rendering %s %s", t.Name, format)
	}
	return Export{
		Filename:    fmt.Sprintf("%s-%s.%s", t.Name, time.Now().UTC().Format("20060102"), format),
		ContentType: ct,
		Content:     content,
	}, nil
}

func renderXLSX(t table) ([]byte, error) {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	sheet := t.Name
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for colIdx, header := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(colIdx+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(colIdx + 1)
		if err := f.SetColWidth(sheet, col, col, 12*t.Weights[colIdx]); err != nil {
			return nil, err
		}
	}

	for rowIdx, row := range t.Rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			var cellValue interface{} = value
			if n, err := strconv.Atoi(value); err == nil {
				cellValue = n
			}
			if err := f.SetCellValue(sheet, cell, cellValue); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPDF(t table) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(t.Title, true)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	var totalWeight float64
	for _, w := range t.Weights {
		totalWeight += w
	}
	widths := make([]float64, len(t.Weights))
	for i, w := range t.Weights {
		widths[i] = pdfPageWidth * w / totalWeight
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(211, 211, 211)
		for i, h := range t.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, tr(t.Title), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 10, time.Now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "R", false, 0, "")
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	for _, row := range t.Rows {
		for i, value := range row {
			align := "L"
			if _, err := strconv.Atoi(value); err == nil {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, tr(truncate(value, widths[i])), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncate shortens s to roughly fit a cell of width mm.
func truncate(s string, width float64) string {
	maxChars := int(width / 1.6)
	runes := []rune(s)
	if len(runes) <= maxChars || maxChars < 4 {
		return s
	}
	return string(runes[:maxChars-3]) + "..."
}
