package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/storage"
)

// EventPublisher receives a notification after each successful mutation.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev amqp.ExpenseEvent) error
}

// ExpenseService validates input, calls the record store and computes the
// aggregate views. Summaries are recomputed from the store on every call.
type ExpenseService struct {
	store     storage.Store
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
}

type Option func(*ExpenseService)

// WithClock overrides the time source used by the dashboard.
func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

// WithPublisher enables change events. A nil publisher leaves them disabled.
func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func NewExpenseService(store storage.Store, logger *log.Logger, opts ...Option) *ExpenseService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &ExpenseService{
		store:  store,
		logger: logger.WithComponent(log.ComponentExpense),
		events: log.NewStructuredLogger(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExpenseService) List(ctx context.Context, f core.ListFilter) ([]core.Expense, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(f.StartDate.Time) {
		return []core.Expense{}, nil
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, storeErr("list expenses", err)
	}
	return out, nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Expense{}, storeErr("get expense", err)
	}
	return e, nil
}

// Create validates in and stores it. Nothing reaches the store when
// validation fails.
func (s *ExpenseService) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	e, err := s.store.Create(ctx, in)
	if err != nil {
		return core.Expense{}, storeErr("create expense", err)
	}

	s.logChange(ctx, log.OpCreate, e)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventCreated, e.ID))
	return e, nil
}

// Update replaces every mutable field of the record with id.
func (s *ExpenseService) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	e, err := s.store.Update(ctx, id, in)
	if err != nil {
		return core.Expense{}, storeErr("update expense", err)
	}

	s.logChange(ctx, log.OpUpdate, e)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, e.ID))
	return e, nil
}

// Delete removes the record and returns it as it was.
func (s *ExpenseService) Delete(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.store.Delete(ctx, id)
	if err != nil {
		return core.Expense{}, storeErr("delete expense", err)
	}

	s.logChange(ctx, log.OpDelete, e)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventDeleted, e.ID))
	return e, nil
}

func (s *ExpenseService) ClearAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return storeErr("clear expenses", err)
	}
	s.logger.InfoContext(ctx, "Cleared all expenses", log.FieldOperation, log.OpClear)
	s.publish(ctx, amqp.ExpenseEvent{Type: amqp.EventCleared, Timestamp: s.now().UTC()})
	return nil
}

// ImportBulk validates the whole batch first and stores it atomically. The
// first invalid record rejects the batch with a ValidationError naming its index.
func (s *ExpenseService) ImportBulk(ctx context.Context, batch []core.ExpenseInput) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	clean := make([]core.ExpenseInput, len(batch))
	for i, in := range batch {
		in = in.Normalize()
		if err := in.Validate(); err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				return 0, &core.ValidationError{
					Field:   fmt.Sprintf("expenses[%d].%s", i, ve.Field),
					Message: fmt.Sprintf("expense %d: %s", i, ve.Message),
				}
			}
			return 0, err
		}
		clean[i] = in
	}

	n, err := s.store.Import(ctx, clean)
	if err != nil {
		return 0, storeErr("import expenses", err)
	}

	s.logger.InfoContext(ctx, "Imported expenses", log.NewFields().WithOperation(log.OpImport).WithCount(n).ToSlice()...)
	s.publish(ctx, amqp.NewImportEvent(n))
	return n, nil
}

func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	records, err := s.all(ctx, "summarize expenses")
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(records), nil
}

func (s *ExpenseService) Statistics(ctx context.Context, opts core.StatisticsOptions) (core.Statistics, error) {
	records, err := s.all(ctx, "compute statistics")
	if err != nil {
		return core.Statistics{}, err
	}
	return core.BuildStatistics(records, opts), nil
}

func (s *ExpenseService) Dashboard(ctx context.Context) (core.Dashboard, error) {
	records, err := s.all(ctx, "build dashboard")
	if err != nil {
		return core.Dashboard{}, err
	}
	return core.BuildDashboard(records, s.now()), nil
}

// ExportRecords returns every record in list order.
func (s *ExpenseService) ExportRecords(ctx context.Context) ([]core.Expense, error) {
	return s.all(ctx, "export expenses")
}

// Ping reports whether the store is reachable.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ExpenseService) all(ctx context.Context, op string) ([]core.Expense, error) {
	records, err := s.store.List(ctx, core.ListFilter{})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return records, nil
}

// publish sends ev when a publisher is configured. Failures are logged only:
// the mutation has already been committed.
func (s *ExpenseService) publish(ctx context.Context, ev amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ID,
			log.FieldError, err)
	}
}

func (s *ExpenseService) logChange(ctx context.Context, op string, e core.Expense) {
	s.events.LogExpenseChange(ctx, op, e.ID, e.Title, e.Amount.Cents, e.Category, e.Date.String())
}

// storeErr passes ErrNotFound through and wraps anything else in a StoreError.
func storeErr(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	return &core.StoreError{Op: op, Err: err}
}
