// Package sqlite stores expenses in a SQLite file through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expenses/internal/core"
	"expenses/internal/storage"

	_ "modernc.org/sqlite"
)

var dialect = storage.Dialect{
	Placeholder: func(int) string { return "?" },
	DateValue:   func(d core.Date) any { return d.String() },
}

type Store struct {
	db *sql.DB
}

// dsn enables a busy timeout so concurrent writers wait instead of failing.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// New opens (creating if needed) the database at dbPath and applies migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) List(ctx context.Context, f core.ListFilter) ([]core.Expense, error) {
	query, args := storage.ListQuery(f, dialect)
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	row := s.db.QueryRowContext(ctx,
		"SELECT "+storage.ExpenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound("get expense", err)
	}
	return e, nil
}

func (s *Store) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (title, amount_cents, category, date, description)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+storage.ExpenseColumns,
		in.Title, in.Amount.Cents, in.Category, in.Date.String(), in.Description)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, category = ?, date = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING `+storage.ExpenseColumns,
		in.Title, in.Amount.Cents, in.Category, in.Date.String(), in.Description, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound("update expense", err)
	}
	return e, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"DELETE FROM expenses WHERE id = ? RETURNING "+storage.ExpenseColumns, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound("delete expense", err)
	}
	return e, nil
}

// Clear deletes every row. AUTOINCREMENT keeps sqlite_sequence, so ids are not reused.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM expenses"); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	return nil
}

// Import inserts the batch in one transaction.
func (s *Store) Import(ctx context.Context, batch []core.ExpenseInput) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO expenses (title, amount_cents, category, date, description)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for i, in := range batch {
		if _, err := stmt.ExecContext(ctx, in.Title, in.Amount.Cents, in.Category, in.Date.String(), in.Description); err != nil {
			return 0, fmt.Errorf("import expense %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(batch), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e     core.Expense
		cents int64
		date  string
	)
	if err := row.Scan(&e.ID, &e.Title, &cents, &e.Category, &date, &e.Description); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.Money{Cents: cents}
	e.Date = d
	return e, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
