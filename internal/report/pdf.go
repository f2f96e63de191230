// Package report renders expense exports that are not plain data dumps.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"expenses/internal/core"
)

const topRows = 10

// BuildSummaryPDF renders an A4 report with the overall summary, the
// category breakdown and the largest expenses.
func BuildSummaryPDF(records []core.Expense, generated time.Time) ([]byte, error) {
	sum := core.Summarize(records)
	breakdown := core.CategoryBreakdown(records, "All")
	top := core.TopExpenses(records, topRows)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Expense Report", false)
	pdf.SetCreator("expenses", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Expense Report")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, "Generated: "+generated.UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(60, 7, "Total spent")
	pdf.Cell(0, 7, sum.Total.StringFixed())
	pdf.Ln(7)
	pdf.Cell(60, 7, "Expenses")
	pdf.Cell(0, 7, fmt.Sprintf("%d", sum.Count))
	pdf.Ln(7)
	pdf.Cell(60, 7, "Average expense")
	pdf.Cell(0, 7, fmt.Sprintf("%.2f", sum.AverageExpense))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Category Breakdown")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(60, 7, "Category", "B", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Amount", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Count", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "%", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, c := range breakdown {
		pdf.CellFormat(60, 7, tr(c.Category), "", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, c.Total.StringFixed(), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", c.Count), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.1f", c.Percentage), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Top Expenses")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(25, 7, "Date", "B", 0, "L", false, 0, "")
	pdf.CellFormat(85, 7, "Title", "B", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Category", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range top {
		pdf.CellFormat(25, 7, e.Date.String(), "", 0, "L", false, 0, "")
		pdf.CellFormat(85, 7, tr(truncate(e.Title, 48)), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, tr(e.Category), "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, e.Amount.StringFixed(), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
