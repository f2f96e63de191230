package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expenses/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{64, 30 * time.Second}, // no shift overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

type fakeChannel struct {
	publishErr error
	published  atomic.Int32
	closed     atomic.Bool
}

func (f *fakeChannel) PublishWithContext(context.Context, string, string, bool, bool, amqp091.Publishing) error {
	f.published.Add(1)
	return f.publishErr
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp091.Table) (<-chan amqp091.Delivery, error) {
	return nil, amqp091.ErrClosed
}

func (f *fakeChannel) Close() error {
	f.closed.Store(true)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newOfflineClient returns a client whose dialer always fails.
func newOfflineClient() *Client {
	c := &Client{
		exchangeName: "test_exchange",
		queueName:    "test_queue",
		logger:       log.Discard(),
		done:         make(chan struct{}),
	}
	c.dial = func() (io.Closer, channel, error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	}
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_PublishFailsFastWhileDisconnected(t *testing.T) {
	client := newOfflineClient()
	defer client.Close()

	var dials atomic.Int32
	release := make(chan struct{})
	client.dial = func() (io.Closer, channel, error) {
		dials.Add(1)
		<-release
		return nil, nil, errors.New("dial tcp: connection refused")
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.PublishExpenseEvent(context.Background(), NewExpenseEvent(EventCreated, 1))
			if !errors.Is(err, amqp091.ErrClosed) {
				t.Errorf("expected closed error, got %v", err)
			}
		}()
	}
	wg.Wait()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("publish blocked for %v while disconnected", elapsed)
	}

	waitFor(t, func() bool { return dials.Load() == 1 })
	close(release)
	time.Sleep(20 * time.Millisecond)
	if n := dials.Load(); n != 1 {
		t.Errorf("dials = %d, want a single reconnect loop", n)
	}
}

func TestClient_PublishDropsDeadChannelAndReconnects(t *testing.T) {
	client := newOfflineClient()
	defer client.Close()

	dead := &fakeChannel{publishErr: amqp091.ErrClosed}
	client.conn, client.channel = nopCloser{}, dead

	fresh := &fakeChannel{}
	client.dial = func() (io.Closer, channel, error) { return nopCloser{}, fresh, nil }

	err := client.PublishExpenseEvent(context.Background(), NewExpenseEvent(EventUpdated, 2))
	if err == nil {
		t.Fatal("expected publish error on a dead channel")
	}
	if !dead.closed.Load() {
		t.Error("dead channel not closed")
	}
	if dead.published.Load() != 1 {
		t.Errorf("dead channel published %d times, want no inline retry", dead.published.Load())
	}

	waitFor(t, func() bool { return client.current() == channel(fresh) })
	if err := client.PublishExpenseEvent(context.Background(), NewExpenseEvent(EventUpdated, 2)); err != nil {
		t.Fatalf("publish after reconnect: %v", err)
	}
	if fresh.published.Load() != 1 {
		t.Errorf("fresh channel published %d times", fresh.published.Load())
	}
}

func TestClient_DropIgnoresStaleChannel(t *testing.T) {
	client := newOfflineClient()
	live := &fakeChannel{}
	client.conn, client.channel = nopCloser{}, live

	client.drop(&fakeChannel{})
	if client.current() != channel(live) || live.closed.Load() {
		t.Fatal("stale drop tore down the live session")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !live.closed.Load() || client.current() != nil {
		t.Fatal("Close left the session open")
	}
	client.triggerReconnect()
	if client.reconnecting.Load() {
		t.Error("closed client started reconnecting")
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := newOfflineClient()

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed initially")
		}
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed after success")
		}
		if atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("Failure count should be reset to 0 after success")
		}
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("Circuit breaker should be open after max failures")
		}
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		if client.isCircuitOpen() {
			t.Error("Circuit should transition to half-open after timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("State should be StateHalfOpen after timeout")
		}
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)
		client.recordFailure()
		if atomic.LoadInt32(&client.state) != StateOpen {
			t.Error("A half-open failure should reopen the circuit")
		}
	})
}

func TestClient_PublishExpenseEvent_Guards(t *testing.T) {
	t.Run("publish fails when circuit is open", func(t *testing.T) {
		client := newOfflineClient()
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishExpenseEvent(context.Background(), NewExpenseEvent(EventCreated, 1))
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Fatalf("expected circuit breaker error, got %v", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		client := newOfflineClient()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PublishExpenseEvent(ctx, NewExpenseEvent(EventCreated, 1))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestExpenseEventJSON(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := ExpenseEvent{Type: EventDeleted, ID: 42, Timestamp: ts}

	b, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if strings.Contains(string(b), "count") {
		t.Errorf("zero count should be omitted: %s", b)
	}

	parsed, err := ExpenseEventFromJSON(b)
	if err != nil {
		t.Fatalf("ExpenseEventFromJSON() error = %v", err)
	}
	if parsed.Type != EventDeleted || parsed.ID != 42 || !parsed.Timestamp.Equal(ts) {
		t.Errorf("unexpected event: %+v", parsed)
	}
}

func TestExpenseEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		ev      ExpenseEvent
		wantErr bool
	}{
		{"created", NewExpenseEvent(EventCreated, 1), false},
		{"created without id", ExpenseEvent{Type: EventCreated}, true},
		{"cleared", ExpenseEvent{Type: EventCleared}, false},
		{"imported", NewImportEvent(3), false},
		{"unknown", ExpenseEvent{Type: "renamed", ID: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.ev.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpenseEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := ExpenseEventFromJSON([]byte(`{"type":"created","id":"x"}`)); err == nil {
		t.Error("expected decode error")
	}
}
