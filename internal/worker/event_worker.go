package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/storage"
)

// EventWorker consumes expense change events. For single-record events it
// reads the current record from the store so the log line carries its
// details; a record deleted in the meantime is not an error.
type EventWorker struct {
	reader storage.ExpenseReader
	logger *log.Logger
	events *log.StructuredLogger

	mu     sync.Mutex
	counts map[amqp.EventType]int
}

// NewEventWorker creates a worker. reader may be nil, in which case events
// are logged without record details.
func NewEventWorker(reader storage.ExpenseReader, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		reader: reader,
		logger: logger.WithComponent(log.ComponentEvents),
		events: log.NewStructuredLogger(logger),
		counts: make(map[amqp.EventType]int),
	}
}

// HandleEvent processes a single event from AMQP. A returned error requeues
// the message.
func (w *EventWorker) HandleEvent(ctx context.Context, ev amqp.ExpenseEvent) error {
	w.mu.Lock()
	w.counts[ev.Type]++
	w.mu.Unlock()

	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		return w.handleRecordEvent(ctx, ev)
	case amqp.EventDeleted:
		w.logger.InfoContext(ctx, "Expense deleted",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ID,
			"published_at", ev.Timestamp)
	case amqp.EventCleared:
		w.logger.InfoContext(ctx, "All expenses cleared",
			log.FieldEventType, ev.Type,
			"published_at", ev.Timestamp)
	case amqp.EventImported:
		w.logger.InfoContext(ctx, "Expenses imported",
			log.FieldEventType, ev.Type,
			log.FieldCount, ev.Count,
			"published_at", ev.Timestamp)
	}
	return nil
}

func (w *EventWorker) handleRecordEvent(ctx context.Context, ev amqp.ExpenseEvent) error {
	if w.reader == nil {
		w.logger.InfoContext(ctx, "Expense changed",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ID)
		return nil
	}

	e, err := w.reader.Get(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.DebugContext(ctx, "Expense no longer exists",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %d: %w", ev.ID, err)
	}

	op := log.OpCreate
	if ev.Type == amqp.EventUpdated {
		op = log.OpUpdate
	}
	w.events.LogExpenseChange(ctx, op, e.ID, e.Title, e.Amount.Cents, e.Category, e.Date.String())
	return nil
}

// Counts returns the number of events handled per type.
func (w *EventWorker) Counts() map[amqp.EventType]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[amqp.EventType]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

// ReportTotals logs the current store summary.
func (w *EventWorker) ReportTotals(ctx context.Context) error {
	if w.reader == nil {
		return nil
	}
	records, err := w.reader.List(ctx, core.ListFilter{})
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	sum := core.Summarize(records)
	w.logger.InfoContext(ctx, "Expense totals",
		log.FieldOperation, log.OpSummary,
		log.FieldCount, sum.Count,
		"total", sum.Total.StringFixed(),
		"categories", len(sum.CategoryTotals),
		"events_handled", w.Counts())
	return nil
}

// RunReports calls ReportTotals every interval until ctx is cancelled.
func (w *EventWorker) RunReports(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ReportTotals(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic report failed", log.FieldError, err)
			}
		}
	}
}
