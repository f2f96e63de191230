package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"expenses/internal/core"
)

// ExportVersion is the format version of JSON exports.
const ExportVersion = "1.0"

// CSVHeader is the column order of CSV exports. Descriptions are not exported.
var CSVHeader = []string{"id", "title", "amount", "category", "date"}

// Document is the body of a JSON export.
type Document struct {
	Expenses   []core.Expense `json:"expenses"`
	ExportDate time.Time      `json:"exportDate"`
	Version    string         `json:"version"`
}

func NewDocument(records []core.Expense, now time.Time) Document {
	if records == nil {
		records = []core.Expense{}
	}
	return Document{Expenses: records, ExportDate: now.UTC(), Version: ExportVersion}
}

// WriteCSV writes a header row and one row per record.
func WriteCSV(w io.Writer, records []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range records {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			cellText(e.Title),
			e.Amount.String(),
			cellText(e.Category),
			e.Date.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// cellText prefixes text a spreadsheet would evaluate as a formula with a
// single quote.
func cellText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
