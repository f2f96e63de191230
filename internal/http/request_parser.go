package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"expenses/internal/core"
)

const (
	maxBodyBytes       = 1 << 20
	maxImportBodyBytes = 10 << 20
	maxTrendMonths     = 120
)

var errInvalidBody = &core.ValidationError{Field: "body", Message: "Invalid JSON body"}

// expensePayload is the wire form of a create, update or import record.
// Amount accepts a JSON number or a numeric string.
type expensePayload struct {
	Title       string      `json:"title"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
}

type importPayload struct {
	Expenses json.RawMessage `json:"expenses"`
}

// toInput converts the payload into a service input. Amount and date parse
// failures are validation errors; the remaining rules are checked by the
// service.
func (p expensePayload) toInput() (core.ExpenseInput, error) {
	cents, err := core.ParseDecimalToCents(p.Amount.String())
	if err != nil {
		return core.ExpenseInput{}, err
	}
	in := core.ExpenseInput{
		Title:       p.Title,
		Amount:      core.Money{Cents: cents},
		Category:    p.Category,
		Description: p.Description,
	}
	if strings.TrimSpace(p.Date) != "" {
		d, err := core.ParseDate(p.Date)
		if err != nil {
			return core.ExpenseInput{}, &core.ValidationError{Field: "date", Message: "date must be in YYYY-MM-DD format"}
		}
		in.Date = d
	}
	return in, nil
}

// decodeJSON reads at most limit bytes of JSON from r into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &core.ValidationError{Field: "body", Message: "Request body too large"}
		}
		return errInvalidBody
	}
	if _, err := dec.Token(); err != io.EOF {
		return errInvalidBody
	}
	return nil
}

// ParseExpenseInput decodes a single expense body.
func ParseExpenseInput(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, error) {
	var p expensePayload
	if err := decodeJSON(w, r, maxBodyBytes, &p); err != nil {
		return core.ExpenseInput{}, err
	}
	return p.toInput()
}

// ParseImportBatch decodes {"expenses": [...]}. Anything other than an array
// under "expenses" is rejected before a single record is looked at.
func ParseImportBatch(w http.ResponseWriter, r *http.Request) ([]core.ExpenseInput, error) {
	var p importPayload
	if err := decodeJSON(w, r, maxImportBodyBytes, &p); err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(p.Expenses)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &core.ValidationError{Field: "expenses", Message: "expenses must be an array"}
	}

	var items []expensePayload
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &core.ValidationError{Field: "expenses", Message: "expenses must be an array of expense objects"}
	}

	batch := make([]core.ExpenseInput, 0, len(items))
	for i, item := range items {
		in, err := item.toInput()
		if err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				return nil, &core.ValidationError{
					Field:   fmt.Sprintf("expenses[%d].%s", i, ve.Field),
					Message: fmt.Sprintf("expense %d: %s", i, ve.Message),
				}
			}
			return nil, err
		}
		batch = append(batch, in)
	}
	return batch, nil
}

// ParseListFilter reads category, startDate and endDate. A malformed date is
// a validation error rather than being ignored.
func ParseListFilter(query url.Values) (core.ListFilter, error) {
	f := core.ListFilter{Category: strings.TrimSpace(query.Get("category"))}

	for _, bound := range []struct {
		key string
		dst **core.Date
	}{
		{"startDate", &f.StartDate},
		{"endDate", &f.EndDate},
	} {
		v := strings.TrimSpace(query.Get(bound.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.ListFilter{}, &core.ValidationError{Field: bound.key, Message: bound.key + " must be in YYYY-MM-DD format"}
		}
		*bound.dst = &d
	}
	return f, nil
}

// ParseStatisticsOptions reads months, category and limit. Absent values
// fall back to the engine defaults.
func ParseStatisticsOptions(query url.Values) (core.StatisticsOptions, error) {
	opts := core.StatisticsOptions{Category: strings.TrimSpace(query.Get("category"))}

	months, err := positiveInt(query, "months", maxTrendMonths)
	if err != nil {
		return core.StatisticsOptions{}, err
	}
	limit, err := positiveInt(query, "limit", 0)
	if err != nil {
		return core.StatisticsOptions{}, err
	}
	opts.Months = months
	opts.TopLimit = limit
	return opts, nil
}

// positiveInt returns 0 when key is absent. An upper bound of 0 means unbounded.
func positiveInt(query url.Values, key string, upper int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || (upper > 0 && n > upper) {
		msg := key + " must be a positive integer"
		if upper > 0 {
			msg = fmt.Sprintf("%s must be an integer between 1 and %d", key, upper)
		}
		return 0, &core.ValidationError{Field: key, Message: msg}
	}
	return n, nil
}

// ParseID reads the {id} route variable. The route only matches digits, so
// the one failure left is overflow, which cannot name a stored record.
func ParseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		return 0, core.ErrNotFound
	}
	return id, nil
}
