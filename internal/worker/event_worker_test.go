package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/storage"
	"expenses/internal/storage/memory"
)

type brokenReader struct{ storage.ExpenseReader }

func (brokenReader) Get(context.Context, int64) (core.Expense, error) {
	return core.Expense{}, errors.New("database is locked")
}

func TestHandleEvent(t *testing.T) {
	store := memory.NewWithRecords([]core.Expense{
		{ID: 1, Title: "Coffee", Amount: core.Money{Cents: 500}, Category: "Food", Date: core.NewDate(2024, 3, 1)},
	})
	var buf bytes.Buffer
	w := NewEventWorker(store, log.New(log.Config{Format: "json", Output: &buf}))
	ctx := context.Background()

	events := []amqp.ExpenseEvent{
		amqp.NewExpenseEvent(amqp.EventCreated, 1),
		amqp.NewExpenseEvent(amqp.EventUpdated, 99), // gone already
		amqp.NewExpenseEvent(amqp.EventDeleted, 1),
		amqp.NewImportEvent(3),
		{Type: amqp.EventCleared},
	}
	for _, ev := range events {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s): %v", ev.Type, err)
		}
	}

	out := buf.String()
	for _, want := range []string{`"expense_title":"Coffee"`, `"msg":"Expense deleted"`, `"count":3`, `"msg":"All expenses cleared"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s:\n%s", want, out)
		}
	}

	counts := w.Counts()
	if counts[amqp.EventCreated] != 1 || counts[amqp.EventUpdated] != 1 || counts[amqp.EventCleared] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestHandleEventStoreErrorRequeues(t *testing.T) {
	w := NewEventWorker(brokenReader{}, log.Discard())
	if err := w.HandleEvent(context.Background(), amqp.NewExpenseEvent(amqp.EventCreated, 1)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestHandleEventWithoutReader(t *testing.T) {
	w := NewEventWorker(nil, log.Discard())
	if err := w.HandleEvent(context.Background(), amqp.NewExpenseEvent(amqp.EventCreated, 1)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if err := w.ReportTotals(context.Background()); err != nil {
		t.Fatalf("ReportTotals: %v", err)
	}
}

func TestReportTotals(t *testing.T) {
	store := memory.NewWithRecords([]core.Expense{
		{ID: 1, Title: "a", Amount: core.Money{Cents: 150}, Category: "Food", Date: core.NewDate(2024, 3, 1)},
		{ID: 2, Title: "b", Amount: core.Money{Cents: 250}, Category: "Bills", Date: core.NewDate(2024, 3, 2)},
	})
	var buf bytes.Buffer
	w := NewEventWorker(store, log.New(log.Config{Format: "json", Output: &buf}))

	if err := w.ReportTotals(context.Background()); err != nil {
		t.Fatalf("ReportTotals: %v", err)
	}
	if !strings.Contains(buf.String(), `"total":"4.00"`) || !strings.Contains(buf.String(), `"count":2`) {
		t.Errorf("unexpected report: %s", buf.String())
	}
}
