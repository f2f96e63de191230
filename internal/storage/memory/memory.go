// Package memory is an in-process record store used for the memory backend
// and as a test double.
package memory

import (
	"context"
	"slices"
	"sync"

	"expenses/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

func New() *Store {
	return &Store{nextID: 1}
}

// NewWithRecords seeds the store. Seed ids are kept and the id counter
// continues after the highest one.
func NewWithRecords(records []core.Expense) *Store {
	s := New()
	for _, e := range records {
		s.items = append(s.items, e)
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return s
}

func (s *Store) List(_ context.Context, f core.ListFilter) ([]core.Expense, error) {
	s.mu.Lock()
	out := core.FilterExpenses(s.items, f)
	s.mu.Unlock()
	core.SortForList(out)
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return s.items[i], nil
}

func (s *Store) Create(_ context.Context, in core.ExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := in.ToExpense(s.nextID)
	s.nextID++
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) Update(_ context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	s.items[i] = in.ToExpense(id)
	return s.items[i], nil
}

func (s *Store) Delete(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	e := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	return e, nil
}

// Clear removes every record. The id counter is not reset.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

// Import appends the batch under a single lock so readers never observe a
// partial batch.
func (s *Store) Import(_ context.Context, batch []core.ExpenseInput) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range batch {
		s.items = append(s.items, in.ToExpense(s.nextID))
		s.nextID++
	}
	return len(batch), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) index(id int64) int {
	return slices.IndexFunc(s.items, func(e core.Expense) bool { return e.ID == id })
}
