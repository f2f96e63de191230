// Package storage defines the record store ports. Implementations live in
// the memory, sqlite and postgres subpackages and are selected once at startup
// by the backend factory.
package storage

import (
	"context"

	"expenses/internal/core"
)

type (
	// ExpenseReader lists and fetches records. List returns records ordered by
	// date descending, ties by id ascending.
	ExpenseReader interface {
		List(ctx context.Context, f core.ListFilter) ([]core.Expense, error)
		Get(ctx context.Context, id int64) (core.Expense, error)
	}

	// ExpenseWriter mutates single records. Missing ids yield core.ErrNotFound.
	ExpenseWriter interface {
		Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
		Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error)
		Delete(ctx context.Context, id int64) (core.Expense, error)
	}

	// BulkWriter clears the table or inserts a batch atomically.
	BulkWriter interface {
		Clear(ctx context.Context) error
		Import(ctx context.Context, batch []core.ExpenseInput) (int, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full record store.
	Store interface {
		ExpenseReader
		ExpenseWriter
		BulkWriter
		Pinger
		Close() error
	}
)
