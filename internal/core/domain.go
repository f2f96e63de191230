package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the ISO calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

const (
	maxTitleLength       = 200
	maxDescriptionLength = 1000
)

// Categories accepted for new and updated expenses.
var Categories = []string{
	"Food",
	"Transportation",
	"Entertainment",
	"Healthcare",
	"Shopping",
	"Bills",
	"Education",
	"Other",
}

type (
	Date struct {
		time.Time
	}

	// Expense is a stored expense record. ID is assigned by the store.
	Expense struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
	}

	// ExpenseInput carries every mutable field of an expense. It is built once at
	// the API boundary and validated before reaching a store.
	ExpenseInput struct {
		Title       string
		Amount      Money
		Category    string
		Date        Date
		Description string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the ISO representation, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the "YYYY-MM" grouping key.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	return nil
}

// IsCategory reports whether name belongs to the fixed category set.
func IsCategory(name string) bool {
	return slices.Contains(Categories, name)
}

// Validate checks required fields. Every failure is a *ValidationError.
func (in ExpenseInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("title too long (max %d characters)", maxTitleLength)}
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Category) == "" {
		return &ValidationError{Field: "category", Message: "category is required"}
	}
	if !IsCategory(in.Category) {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", in.Category)}
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("description too long (max %d characters)", maxDescriptionLength)}
	}
	return nil
}

// Normalize trims free-text fields.
func (in ExpenseInput) Normalize() ExpenseInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// ToExpense builds a record with the given id from the input.
func (in ExpenseInput) ToExpense(id int64) Expense {
	return Expense{
		ID:          id,
		Title:       in.Title,
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        in.Date,
		Description: in.Description,
	}
}
