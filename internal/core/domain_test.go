package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-01", true},
		{" 2024-12-31 ", true},
		{"2024-02-30", false},
		{"2024-3-1", false},
		{"01/03/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, 3, 1)
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2024-03-01"` {
		t.Fatalf("marshal: %s err=%v", b, err)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unmarshal: %v err=%v", back, err)
	}
	if d.MonthKey() != "2024-03" {
		t.Fatalf("month key = %q", d.MonthKey())
	}
	if (Date{}).String() != "" {
		t.Fatalf("zero date should render empty")
	}
}

func TestExpenseInputValidate(t *testing.T) {
	good := ExpenseInput{
		Title:    "Coffee",
		Amount:   Money{Cents: 500},
		Category: "Food",
		Date:     NewDate(2024, 3, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	wide := good
	wide.Title = strings.Repeat("é", 200)
	wide.Description = strings.Repeat("€", 1000)
	if err := wide.Validate(); err != nil {
		t.Fatalf("limits count characters, not bytes: %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*ExpenseInput)
		field string
	}{
		{"missing title", func(in *ExpenseInput) { in.Title = "  " }, "title"},
		{"long title", func(in *ExpenseInput) { in.Title = strings.Repeat("x", 201) }, "title"},
		{"long multibyte title", func(in *ExpenseInput) { in.Title = strings.Repeat("é", 201) }, "title"},
		{"zero amount", func(in *ExpenseInput) { in.Amount = Money{} }, "amount"},
		{"negative amount", func(in *ExpenseInput) { in.Amount = Money{Cents: -1} }, "amount"},
		{"missing category", func(in *ExpenseInput) { in.Category = "" }, "category"},
		{"unknown category", func(in *ExpenseInput) { in.Category = "food" }, "category"},
		{"missing date", func(in *ExpenseInput) { in.Date = Date{Time: time.Time{}} }, "date"},
		{"long description", func(in *ExpenseInput) { in.Description = strings.Repeat("d", 1001) }, "description"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mut(&in)
			err := in.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestNormalizeTrims(t *testing.T) {
	in := ExpenseInput{Title: " a ", Category: " Food ", Description: " d "}.Normalize()
	if in.Title != "a" || in.Category != "Food" || in.Description != "d" {
		t.Fatalf("unexpected normalize result: %+v", in)
	}
}

func TestListFilterMatches(t *testing.T) {
	start := NewDate(2024, 1, 10)
	end := NewDate(2024, 1, 20)
	before := NewDate(2024, 1, 9)
	e := Expense{Category: "Food", Date: NewDate(2024, 1, 10)}

	cases := []struct {
		name string
		f    ListFilter
		want bool
	}{
		{"zero filter", ListFilter{}, true},
		{"All", ListFilter{Category: "All"}, true},
		{"ALL", ListFilter{Category: "ALL"}, true},
		{"same category", ListFilter{Category: "Food"}, true},
		{"other category", ListFilter{Category: "Bills"}, false},
		{"start inclusive", ListFilter{StartDate: &start}, true},
		{"end before", ListFilter{EndDate: &before}, false},
		{"range inclusive", ListFilter{StartDate: &start, EndDate: &end}, true},
	}
	for _, tc := range cases {
		if got := tc.f.Matches(e); got != tc.want {
			t.Fatalf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}
