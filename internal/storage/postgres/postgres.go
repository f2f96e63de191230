// Package postgres stores expenses in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"expenses/internal/core"
	"expenses/internal/storage"
)

var dialect = storage.Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	DateValue:   func(d core.Date) any { return d.Time },
}

type Store struct {
	pool *pgxpool.Pool
}

// New runs migrations against databaseURL and opens a connection pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) List(ctx context.Context, f core.ListFilter) ([]core.Expense, error) {
	query, args := storage.ListQuery(f, dialect)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (core.Expense, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+storage.ExpenseColumns+" FROM expenses WHERE id = $1", id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound("get expense", err)
	}
	return e, nil
}

func (s *Store) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO expenses (title, amount_cents, category, date, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+storage.ExpenseColumns,
		in.Title, in.Amount.Cents, in.Category, in.Date.Time, in.Description)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE expenses
SET title = $1, amount_cents = $2, category = $3, date = $4, description = $5, updated_at = now()
WHERE id = $6
RETURNING `+storage.ExpenseColumns,
		in.Title, in.Amount.Cents, in.Category, in.Date.Time, in.Description, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound("update expense", err)
	}
	return e, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (core.Expense, error) {
	row := s.pool.QueryRow(ctx, "DELETE FROM expenses WHERE id = $1 RETURNING "+storage.ExpenseColumns, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound("delete expense", err)
	}
	return e, nil
}

// Clear deletes every row. The BIGSERIAL sequence is left untouched so ids are not reused.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM expenses"); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	return nil
}

// Import copies the batch in a single COPY inside a transaction.
func (s *Store) Import(ctx context.Context, batch []core.ExpenseInput) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"expenses"},
		[]string{"title", "amount_cents", "category", "date", "description"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			in := batch[i]
			return []any{in.Title, in.Amount.Cents, in.Category, in.Date.Time, in.Description}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy expenses: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return int(n), nil
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e     core.Expense
		cents int64
		date  time.Time
	)
	if err := row.Scan(&e.ID, &e.Title, &cents, &e.Category, &date, &e.Description); err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.Money{Cents: cents}
	e.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	return e, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
