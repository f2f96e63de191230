package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"expenses/internal/core"
)

func TestBuildSummaryPDF(t *testing.T) {
	records := []core.Expense{
		{ID: 1, Title: "Groceries", Amount: core.Money{Cents: 4250}, Category: "Food", Date: core.NewDate(2024, 3, 1)},
		{ID: 2, Title: "Caffè", Amount: core.Money{Cents: 350}, Category: "Food", Date: core.NewDate(2024, 3, 2)},
		{ID: 3, Title: "Train", Amount: core.Money{Cents: 1200}, Category: "Transportation", Date: core.NewDate(2024, 3, 3)},
	}

	out, err := BuildSummaryPDF(records, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildSummaryPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:min(len(out), 16)])
	}
}

func TestBuildSummaryPDFEmpty(t *testing.T) {
	out, err := BuildSummaryPDF(nil, time.Now())
	if err != nil {
		t.Fatalf("BuildSummaryPDF: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	got := truncate(strings.Repeat("a", 20), 10)
	if len([]rune(got)) != 12 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate long = %q", got)
	}
}
